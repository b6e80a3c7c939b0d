package convert

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Tags removed wholesale before conversion: scripts, styling, media and
// embedded objects contribute nothing to a text document.
var strippedTags = []string{
	"script", "style", "svg", "noscript", "meta", "link", "iframe",
	"embed", "object", "param", "source", "track", "map", "area",
	"canvas", "audio", "video",
}

// Main-content candidates, most specific theme selectors first. The first
// selector that matches a non-empty region wins.
var contentSelectors = []string{
	"div.theme-doc-markdown.markdown",
	"article.md-content__inner",
	"main .content",
	"div[role=\"main\"]",
	"main",
	"article",
	"#content",
	".content",
	"#main-content",
	".main-content",
	"body",
}

// Presentational containers that carry no Markdown meaning. Their children
// are lifted in place.
var unwrappedTags = map[string]struct{}{
	"div": {}, "span": {}, "font": {}, "section": {}, "article": {},
	"figure": {}, "figcaption": {}, "details": {}, "summary": {},
}

// Attributes kept per element after normalization. code and pre keep class
// so language-tagged fences survive conversion; everything else keeps only
// title.
var allowedAttrs = map[string][]string{
	"a":    {"href", "title"},
	"img":  {"src", "alt", "title"},
	"code": {"class", "title"},
	"pre":  {"class", "title"},
}

var defaultAllowedAttrs = []string{"title"}

// ExtractContent reduces a full HTML page to its main content region,
// normalized for Markdown conversion: chrome stripped, presentational
// wrappers unwrapped, attributes reduced to an allowlist and images
// replaced by text placeholders.
func ExtractContent(pageHTML []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(strings.Join(strippedTags, ", ")).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}

	content := selectMainContent(doc)
	if strings.TrimSpace(content.Text()) == "" {
		return "", fmt.Errorf("page has no extractable content")
	}
	collapseImageOnlyLinks(content)
	replaceImages(content)
	for _, n := range content.Nodes {
		unwrapWithin(n)
		filterAttributes(n)
	}

	inner, err := content.Html()
	if err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}
	return inner, nil
}

// selectMainContent walks the selector cascade and falls back to body.
func selectMainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		candidate := doc.Find(sel).First()
		if candidate.Length() > 0 && strings.TrimSpace(candidate.Text()) != "" {
			return candidate
		}
	}
	return doc.Find("body").First()
}

// collapseImageOnlyLinks rewrites links whose visible content is only
// images, so the conversion step cannot emit an image inside a link. The
// link text becomes the image's alt, the link's aria-label, or "link".
func collapseImageOnlyLinks(content *goquery.Selection) {
	content.Find("a").Each(func(_ int, a *goquery.Selection) {
		imgs := a.Find("img")
		if imgs.Length() == 0 {
			return
		}
		text := strings.TrimSpace(a.Text())
		if text != "" {
			return
		}
		label := strings.TrimSpace(imgs.First().AttrOr("alt", ""))
		if label == "" {
			label = strings.TrimSpace(a.AttrOr("aria-label", ""))
		}
		if label == "" {
			label = "link"
		}
		a.SetText(label)
	})
}

// replaceImages substitutes every remaining img with a text placeholder so
// converted documents carry no image syntax.
func replaceImages(content *goquery.Selection) {
	content.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		var placeholder string
		switch {
		case src == "" && alt != "":
			placeholder = fmt.Sprintf("[Missing Image Source: %s]", alt)
		case src == "":
			placeholder = "[Missing Image Source]"
		case alt != "":
			placeholder = fmt.Sprintf("[Embedded Image: %s]", alt)
		default:
			placeholder = "[Embedded Image Removed]"
		}
		img.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: placeholder})
	})
}

func removeComments(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if child.Type == html.CommentNode {
			n.RemoveChild(child)
		} else {
			removeComments(child)
		}
		child = next
	}
}

// unwrapWithin lifts the children of presentational containers below root.
// The root itself is never unwrapped; callers render its inner HTML.
func unwrapWithin(root *html.Node) {
	child := root.FirstChild
	for child != nil {
		next := child.NextSibling
		unwrapNode(child)
		child = next
	}
}

func unwrapNode(n *html.Node) {
	unwrapWithin(n)
	if n.Type != html.ElementNode {
		return
	}
	if _, unwrap := unwrappedTags[n.Data]; !unwrap {
		return
	}
	parent := n.Parent
	if parent == nil {
		return
	}
	for n.FirstChild != nil {
		c := n.FirstChild
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
	}
	parent.RemoveChild(n)
}

func filterAttributes(n *html.Node) {
	if n.Type == html.ElementNode {
		allowed := defaultAllowedAttrs
		if a, ok := allowedAttrs[n.Data]; ok {
			allowed = a
		}
		kept := n.Attr[:0]
		for _, attr := range n.Attr {
			for _, name := range allowed {
				if attr.Key == name {
					kept = append(kept, attr)
					break
				}
			}
		}
		n.Attr = kept
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		filterAttributes(child)
	}
}
