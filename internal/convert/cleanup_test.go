package convert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCleaner() *Cleaner {
	return NewCleaner(NewFallbackConverter())
}

func TestCleanRendersHTMLTables(t *testing.T) {
	in := "intro\n\n<table><thead><tr><th>Name</th><th>Type</th></tr></thead>" +
		"<tbody><tr><td>id</td><td>string</td></tr></tbody></table>\n\nafter"
	out := newTestCleaner().Clean(in)
	require.Contains(t, out, "| Name | Type |")
	require.Contains(t, out, "| id | string |")
	require.Contains(t, out, "---", "the separator row must survive the symbol-line pass")
	require.NotContains(t, out, "<table")
}

func TestCleanStripsPandocArtifacts(t *testing.T) {
	in := "# Title {#custom-id}\n\n::: note\nbody text\n:::\n\n[label]{.badge}\n\n[ref]: https://example.com/def\n"
	out := newTestCleaner().Clean(in)
	require.Contains(t, out, "# Title")
	require.NotContains(t, out, "{#custom-id}")
	require.NotContains(t, out, ":::")
	require.NotContains(t, out, "{.badge}")
	require.NotContains(t, out, "[ref]:")
	require.Contains(t, out, "body text")
	require.Contains(t, out, "[label]")
}

func TestCleanStripsResidualHTML(t *testing.T) {
	in := "text <b>bold</b> and <a href=\"/x\">a link</a> and <img src=\"/i.png\" alt=\"Pic\"> end\n"
	out := newTestCleaner().Clean(in)
	require.Contains(t, out, "bold")
	require.NotContains(t, out, "<b>")
	require.Contains(t, out, "[a link](/x)")
	require.Contains(t, out, "[Embedded Image: Pic]")
}

func TestCleanKeepsAutolinks(t *testing.T) {
	in := "see <https://example.com/page> for details\n"
	out := newTestCleaner().Clean(in)
	require.Contains(t, out, "<https://example.com/page>")
}

func TestCleanLeavesCodeFencesAlone(t *testing.T) {
	in := "before\n\n```html\n<div class=\"x\">\n:::\n{.attr}\n</div>\n```\n\nafter\n"
	out := newTestCleaner().Clean(in)
	require.Contains(t, out, "<div class=\"x\">")
	require.Contains(t, out, ":::")
	require.Contains(t, out, "{.attr}")
}

func TestCleanDropsSymbolLines(t *testing.T) {
	in := "real text\n\n|#|#|#|\n\n---\n\nmore text\n"
	out := newTestCleaner().Clean(in)
	require.NotContains(t, out, "|#|#|#|")
	require.Contains(t, out, "---", "horizontal rules survive")
	require.Contains(t, out, "real text")
}

func TestCleanCollapsesDuplicatePlaceholders(t *testing.T) {
	in := "[Embedded Image Removed]\n[Embedded Image Removed]\n[Embedded Image Removed]\ntext\n"
	out := newTestCleaner().Clean(in)
	require.Equal(t, "[Embedded Image Removed]\ntext\n", out)
}

func TestCleanCollapsesBlankRuns(t *testing.T) {
	out := newTestCleaner().Clean("a\n\n\n\n\nb\n")
	require.Equal(t, "a\n\nb\n", out)
}

func TestCleanIsIdempotent(t *testing.T) {
	cleaner := newTestCleaner()
	inputs := []string{
		"# Title {#x}\n\n<table><thead><tr><th>H</th></tr></thead><tbody><tr><td>v</td></tr></tbody></table>\n",
		"```\n<code>\n```\n\n<span>tail</span>\n",
		"see <https://example.com> and | a | b |\n| --- | --- |\n| 1 | 2 |\n",
	}
	for _, in := range inputs {
		once := cleaner.Clean(in)
		require.Equal(t, once, cleaner.Clean(once), "cleanup must be stable on its own output")
	}
}
