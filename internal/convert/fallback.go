package convert

import (
	"context"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// FallbackConverter is the pure-Go conversion path, used when pandoc is
// missing or rejects a page. Output quality is slightly below pandoc's, so
// it runs second.
type FallbackConverter struct {
	conv *md.Converter
}

// NewFallbackConverter builds the converter with GitHub-flavored extensions
// (tables, strikethrough, task lists).
func NewFallbackConverter() *FallbackConverter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &FallbackConverter{conv: c}
}

// Name identifies the strategy in logs and failure stubs.
func (f *FallbackConverter) Name() string { return "html-to-markdown" }

// Convert renders the given HTML fragment as Markdown.
func (f *FallbackConverter) Convert(_ context.Context, contentHTML string) (string, error) {
	out, err := f.conv.ConvertString(contentHTML)
	if err != nil {
		return "", fmt.Errorf("html-to-markdown: %w", err)
	}
	return out, nil
}
