// Package archive packages finished crawls into downloadable artifacts.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xvc323/omnidocs/internal/assemble"
	"github.com/xvc323/omnidocs/internal/crawler"
)

// ZipName returns the artifact filename for a zip export.
func ZipName(ts time.Time) string {
	return fmt.Sprintf("omni_docs_export_%s.zip", ts.UTC().Format("20060102_150405"))
}

// BuildZip renders the zip artifact: one frontmatter-tagged Markdown file
// per page under docs/, mirroring the URL path, plus docs/order.txt with
// the page order and the combined all_docs.md at the root.
func BuildZip(pages []crawler.PageRecord, combined string, generated time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	used := make(map[string]int)
	order := make([]string, 0, len(pages))
	for _, page := range pages {
		rel := crawler.PageRelPath(page.URL)
		if n := used[rel]; n > 0 {
			used[rel] = n + 1
			rel = numberedPath(rel, n)
		} else {
			used[rel] = 1
		}
		name := "docs/" + rel
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", name, err)
		}
		if _, err := w.Write([]byte(assemble.PageFile(page, generated))); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", name, err)
		}
		order = append(order, name)
	}

	manifest, err := zw.Create("docs/order.txt")
	if err != nil {
		return nil, fmt.Errorf("create order manifest: %w", err)
	}
	if _, err := manifest.Write([]byte(strings.Join(order, "\n") + "\n")); err != nil {
		return nil, fmt.Errorf("write order manifest: %w", err)
	}

	all, err := zw.Create("all_docs.md")
	if err != nil {
		return nil, fmt.Errorf("create combined doc: %w", err)
	}
	if _, err := all.Write([]byte(combined)); err != nil {
		return nil, fmt.Errorf("write combined doc: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip: %w", err)
	}
	return buf.Bytes(), nil
}

// numberedPath inserts a numeric suffix before the extension, so colliding
// sanitized paths stay distinct inside the archive.
func numberedPath(rel string, n int) string {
	if i := strings.LastIndex(rel, "."); i > 0 {
		return fmt.Sprintf("%s_%d%s", rel[:i], n, rel[i:])
	}
	return fmt.Sprintf("%s_%d", rel, n)
}
