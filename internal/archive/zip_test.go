package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xvc323/omnidocs/internal/crawler"
)

func readEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestBuildZipLayout(t *testing.T) {
	generated := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	pages := []crawler.PageRecord{
		{URL: "https://d.example.com/guide/intro", Title: "Intro", Markdown: "intro body\n"},
		{URL: "https://d.example.com/guide/api/", Title: "API", Markdown: "api body\n"},
	}

	data, err := BuildZip(pages, "# Table of Contents\n\ncombined\n", generated)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	intro := readEntry(t, zr, "docs/guide/intro.md")
	require.Contains(t, intro, `source_url: "https://d.example.com/guide/intro"`)
	require.Contains(t, intro, "intro body")

	require.Contains(t, readEntry(t, zr, "docs/guide/api/index.md"), "api body")

	order := readEntry(t, zr, "docs/order.txt")
	require.Equal(t, "docs/guide/intro.md\ndocs/guide/api/index.md\n", order)

	require.Contains(t, readEntry(t, zr, "all_docs.md"), "combined")
}

func TestBuildZipCollidingPaths(t *testing.T) {
	pages := []crawler.PageRecord{
		{URL: "https://d.example.com/a b", Title: "One", Markdown: "one\n"},
		{URL: "https://d.example.com/a%20b", Title: "Two", Markdown: "two\n"},
	}
	data, err := BuildZip(pages, "combined", time.Now())
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		require.False(t, names[f.Name], "duplicate entry %s", f.Name)
		names[f.Name] = true
	}
	require.True(t, names["docs/a_b.md"])
	require.True(t, names["docs/a_b_1.md"])
}

func TestZipName(t *testing.T) {
	ts := time.Date(2026, 8, 23, 10, 4, 5, 0, time.UTC)
	require.Equal(t, "omni_docs_export_20260823_100405.zip", ZipName(ts))
}
