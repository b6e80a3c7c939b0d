package convert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractContentPrefersThemeSelectors(t *testing.T) {
	page := `<html><body>
<main>wrong region</main>
<div class="theme-doc-markdown markdown"><h1>Docs</h1><p>right region</p></div>
</body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, "right region")
	require.NotContains(t, out, "wrong region")
}

func TestExtractContentFallsBackToBody(t *testing.T) {
	page := `<html><body><h1>Plain</h1><p>text</p></body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, "<h1>Plain</h1>")
}

func TestExtractContentStripsChrome(t *testing.T) {
	page := `<html><head><script>evil()</script><style>.x{}</style></head><body>
<main><h1>T</h1><!-- secret --><iframe src="x"></iframe><p>keep</p></main>
</body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, "keep")
	require.NotContains(t, out, "evil")
	require.NotContains(t, out, "iframe")
	require.NotContains(t, out, "secret")
}

func TestExtractContentUnwrapsContainers(t *testing.T) {
	page := `<html><body><main><div class="wrap"><p>Hello <span>world</span></p></div></main></body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, "<p>Hello world</p>")
	require.NotContains(t, out, "<div")
	require.NotContains(t, out, "<span")
}

func TestExtractContentAttributeAllowlist(t *testing.T) {
	page := `<html><body><main>
<a href="/x" onclick="evil()" class="btn" title="go">go</a>
<p data-tracking="1" title="p">text</p>
</main></body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, `href="/x"`)
	require.Contains(t, out, `title="go"`)
	require.NotContains(t, out, "onclick")
	require.NotContains(t, out, "class=")
	require.NotContains(t, out, "data-tracking")
}

func TestExtractContentImagePlaceholders(t *testing.T) {
	page := `<html><body><main>
<p>before</p>
<img src="/a.png" alt="Diagram">
<img src="/b.png">
<img alt="Lost">
<img>
</main></body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, "[Embedded Image: Diagram]")
	require.Contains(t, out, "[Embedded Image Removed]")
	require.Contains(t, out, "[Missing Image Source: Lost]")
	require.Contains(t, out, "[Missing Image Source]")
	require.NotContains(t, out, "<img")
}

func TestExtractContentCollapsesImageOnlyLinks(t *testing.T) {
	page := `<html><body><main>
<a href="/logo"><img src="/logo.png" alt="Home"></a>
<a href="/blank" aria-label="Search"><img src="/s.png"></a>
<a href="/bare"><img src="/b.png"></a>
<a href="/text"><img src="/t.png" alt="ignored">visible</a>
</main></body></html>`
	out, err := ExtractContent([]byte(page))
	require.NoError(t, err)
	require.Contains(t, out, `<a href="/logo">Home</a>`)
	require.Contains(t, out, `<a href="/blank">Search</a>`)
	require.Contains(t, out, `<a href="/bare">link</a>`)
	require.Contains(t, out, "visible")
}

func TestExtractContentEmptyPage(t *testing.T) {
	_, err := ExtractContent([]byte(`<html><body><main>   </main><footer></footer></body></html>`))
	require.Error(t, err)
}
