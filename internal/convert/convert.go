// Package convert turns raw HTML pages into clean Markdown through a
// normalize, convert, cleanup pipeline with cascading converter fallbacks.
package convert

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Strategy is one HTML-to-Markdown conversion backend.
type Strategy interface {
	Name() string
	Convert(ctx context.Context, contentHTML string) (string, error)
}

// Converter implements crawler.PageConverter. It never fails: pages that
// defeat both conversion backends become a visible stub carrying the source
// URL and both error messages.
type Converter struct {
	primary  Strategy
	fallback Strategy
	cleaner  *Cleaner
	log      *zap.Logger
}

// New builds the production pipeline: pandoc first, html-to-markdown as
// fallback.
func New(log *zap.Logger) *Converter {
	fb := NewFallbackConverter()
	return &Converter{
		primary:  NewPandocConverter(),
		fallback: fb,
		cleaner:  NewCleaner(fb),
		log:      log,
	}
}

// NewWithStrategies builds a pipeline over explicit backends.
func NewWithStrategies(primary, fallback Strategy, log *zap.Logger) *Converter {
	return &Converter{
		primary:  primary,
		fallback: fallback,
		cleaner:  NewCleaner(NewFallbackConverter()),
		log:      log,
	}
}

// Convert produces Markdown for one page.
func (c *Converter) Convert(ctx context.Context, pageURL string, page []byte) string {
	content, err := ExtractContent(page)
	if err != nil {
		c.log.Warn("content extraction failed", zap.String("url", pageURL), zap.Error(err))
		return conversionStub(pageURL, err, nil)
	}

	markdown, primaryErr := c.primary.Convert(ctx, content)
	if primaryErr != nil {
		c.log.Debug("primary converter failed, trying fallback",
			zap.String("url", pageURL),
			zap.String("converter", c.primary.Name()),
			zap.Error(primaryErr))
		var fallbackErr error
		markdown, fallbackErr = c.fallback.Convert(ctx, content)
		if fallbackErr != nil {
			c.log.Warn("all converters failed",
				zap.String("url", pageURL),
				zap.Error(primaryErr),
				zap.Error(fallbackErr))
			return conversionStub(pageURL, primaryErr, fallbackErr)
		}
	}
	return c.cleaner.Clean(markdown)
}

// conversionStub is the page body emitted when nothing could be converted.
// It keeps the page present in the assembled document instead of silently
// dropping it.
func conversionStub(pageURL string, primaryErr, fallbackErr error) string {
	var b strings.Builder
	b.WriteString("# Conversion Failed\n\n")
	fmt.Fprintf(&b, "The content at %s could not be converted to Markdown.\n\n", pageURL)
	if primaryErr != nil {
		fmt.Fprintf(&b, "- %v\n", primaryErr)
	}
	if fallbackErr != nil {
		fmt.Fprintf(&b, "- %v\n", fallbackErr)
	}
	return b.String()
}
