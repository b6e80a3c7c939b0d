// Package assemble builds the combined Markdown document: a linked table of
// contents followed by every page in order, with stable HTML anchors.
package assemble

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xvc323/omnidocs/internal/crawler"
)

// Document is the assembled output.
type Document struct {
	TOC  string
	Body string
}

// Combined renders the full single-file document.
func (d Document) Combined() string {
	return d.TOC + "\n\n---\n\n" + d.Body
}

var headingRe = regexp.MustCompile(`^(#{1,2})\s+(.+?)\s*$`)

type tocEntry struct {
	label  string
	anchor string
	level  int
}

// Assembler combines converted pages into one document.
type Assembler struct{}

// New returns an Assembler.
func New() *Assembler { return &Assembler{} }

// Build assembles the pages in the order given. Page file bases (already
// unique across the document) anchor each page; headings of level one and
// two get per-file anchors, deduplicated with numeric suffixes.
func (a *Assembler) Build(pages []crawler.PageRecord) Document {
	var toc []tocEntry
	var body strings.Builder

	for i, page := range pages {
		if i > 0 {
			body.WriteString("\n\n---\n\n")
		}
		fileBase := pageAnchorBase(page)
		title := page.Title
		if strings.TrimSpace(title) == "" {
			title = page.URL
		}
		toc = append(toc, tocEntry{label: title, anchor: fileBase, level: 0})

		fmt.Fprintf(&body, "<!-- Source: %s -->\n\n", page.URL)
		fmt.Fprintf(&body, "<a id=%q></a>\n\n", fileBase)
		fmt.Fprintf(&body, "# %s\n\n", title)

		anchored, headings := anchorHeadings(page.Markdown, fileBase)
		body.WriteString(strings.TrimRight(anchored, "\n"))
		toc = append(toc, headings...)
	}

	return Document{TOC: renderTOC(toc), Body: body.String()}
}

func pageAnchorBase(page crawler.PageRecord) string {
	return strings.TrimSuffix(page.Filename, ".md")
}

// anchorHeadings inserts an anchor element before every level one and two
// heading and reports the headings for the table of contents. Headings
// inside code fences are ignored. Anchor fragments are unique per file.
func anchorHeadings(markdown, fileBase string) (string, []tocEntry) {
	lines := strings.Split(markdown, "\n")
	var out []string
	var entries []tocEntry
	used := make(map[string]struct{})
	inFence := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		m := headingRe.FindStringSubmatch(line)
		if inFence || m == nil {
			out = append(out, line)
			continue
		}

		text := strings.TrimSpace(m[2])
		slug := Slugify(text)
		if slug == "" {
			text = "Untitled Section"
			slug = "untitled-section"
		}
		// Suffix until unique: a literal "setup-1" heading may already
		// occupy the first candidate.
		if _, taken := used[slug]; taken {
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s-%d", slug, n)
				if _, taken := used[candidate]; !taken {
					slug = candidate
					break
				}
			}
		}
		used[slug] = struct{}{}

		anchor := fileBase + "-" + slug
		out = append(out, fmt.Sprintf("<a id=%q></a>", anchor), "", line)
		entries = append(entries, tocEntry{label: text, anchor: anchor, level: len(m[1])})
	}
	return strings.Join(out, "\n"), entries
}

func renderTOC(entries []tocEntry) string {
	var b strings.Builder
	b.WriteString("# Table of Contents\n")
	for _, e := range entries {
		indent := strings.Repeat("  ", e.level)
		fmt.Fprintf(&b, "\n%s- [%s](#%s)", indent, e.label, e.anchor)
	}
	return b.String()
}

// PageFile renders one page as a standalone Markdown file with YAML
// frontmatter, used for the per-page files inside zip exports.
func PageFile(page crawler.PageRecord, generated time.Time) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", page.Title)
	fmt.Fprintf(&b, "source_url: %q\n", page.URL)
	fmt.Fprintf(&b, "date_generated: %q\n", generated.UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimRight(page.Markdown, "\n"))
	b.WriteString("\n")
	return b.String()
}
