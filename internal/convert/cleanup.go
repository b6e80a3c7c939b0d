package convert

import (
	"context"
	"regexp"
	"strings"
)

// Cleaner applies the ordered post-conversion passes. Each pass is
// idempotent, so stubs or already-clean Markdown survive a second run
// unchanged.
type Cleaner struct {
	tables *FallbackConverter
}

// NewCleaner builds a cleaner that renders leftover HTML tables through the
// given converter.
func NewCleaner(tables *FallbackConverter) *Cleaner {
	return &Cleaner{tables: tables}
}

var (
	htmlTableRe = regexp.MustCompile(`(?is)<table\b.*?</table\s*>`)

	// Pandoc artifacts: fenced divs, caption lines and bracketed
	// attribute blocks that GFM has no syntax for.
	colonLineRe    = regexp.MustCompile(`(?m)^:+.*$`)
	attrBlockRe    = regexp.MustCompile(`\{[.#][^}]*\}`)
	refLinkDefRe   = regexp.MustCompile(`(?m)^\s*\[[^\]]+\]:\s+\S.*$`)
	oddTableSepRe  = regexp.MustCompile(`(?m)^-+\+[-+]+$`)
	placeholderRe  = regexp.MustCompile(`^\[(?:Embedded Image|Missing Image Source)`)
	residualImgRe  = regexp.MustCompile(`(?i)<img\b[^>]*\balt="([^"]*)"[^>]*/?>`)
	residualImg2Re = regexp.MustCompile(`(?i)<img\b[^>]*/?>`)
	residualLinkRe = regexp.MustCompile(`(?is)<a\b[^>]*\bhref="([^"]*)"[^>]*>(.*?)</a>`)
	// Matches real tags only; autolinks like <https://example.com> have no
	// tag-name shape and pass through.
	residualTagRe = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(?:\s[^>]*)?/?>`)

	horizontalRuleRe = regexp.MustCompile(`^(?:-{3,}|_{3,}|\*{3,})$`)
	pipeTableSepRe   = regexp.MustCompile(`^\s*\|?[\s:|-]*-[\s:|-]*\|[\s:|-]*$`)
	blankRunRe       = regexp.MustCompile(`\n{3,}`)
)

// Clean runs every pass in order. The order matters: tables must render
// while still HTML, the residual tag strip must run after the table pass,
// and blank-line collapsing must run last.
func (c *Cleaner) Clean(markdown string) string {
	out := c.renderHTMLTables(markdown)
	out = stripArtifacts(out)
	out = stripResidualHTML(out)
	out = dropSymbolLines(out)
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out) + "\n"
}

// renderHTMLTables converts any <table> block that survived the main
// conversion into a Markdown table.
func (c *Cleaner) renderHTMLTables(markdown string) string {
	return htmlTableRe.ReplaceAllStringFunc(markdown, func(table string) string {
		rendered, err := c.tables.Convert(context.Background(), table)
		if err != nil || strings.TrimSpace(rendered) == "" {
			return ""
		}
		return "\n" + strings.TrimSpace(rendered) + "\n"
	})
}

func stripArtifacts(markdown string) string {
	out := transformOutsideFences(markdown, func(line string) string {
		line = colonLineRe.ReplaceAllString(line, "")
		line = attrBlockRe.ReplaceAllString(line, "")
		line = refLinkDefRe.ReplaceAllString(line, "")
		line = oddTableSepRe.ReplaceAllString(line, "")
		return line
	})
	return collapseDuplicatePlaceholders(out)
}

// collapseDuplicatePlaceholders drops consecutive identical image
// placeholder lines, which pile up when a page repeats decorative images.
func collapseDuplicatePlaceholders(markdown string) string {
	lines := strings.Split(markdown, "\n")
	out := lines[:0]
	prev := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && trimmed == prev && placeholderRe.MatchString(trimmed) {
			continue
		}
		if trimmed != "" {
			prev = trimmed
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// stripResidualHTML turns leftover img and a tags into their Markdown
// equivalents, then removes every remaining tag. Fenced code blocks are
// left untouched.
func stripResidualHTML(markdown string) string {
	return transformOutsideFences(markdown, func(line string) string {
		line = residualImgRe.ReplaceAllString(line, "[Embedded Image: $1]")
		line = residualImg2Re.ReplaceAllString(line, "[Embedded Image Removed]")
		line = residualLinkRe.ReplaceAllString(line, "[$2]($1)")
		line = residualTagRe.ReplaceAllString(line, "")
		return line
	})
}

// dropSymbolLines removes lines of pure punctuation left behind by stripped
// markup. Horizontal rules, pipe-table separator rows, fences and blank
// lines are kept.
func dropSymbolLines(markdown string) string {
	lines := strings.Split(markdown, "\n")
	out := lines[:0]
	inFence := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isFenceDelimiter(trimmed) {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence || trimmed == "" || hasAlphanumeric(trimmed) ||
			horizontalRuleRe.MatchString(trimmed) || pipeTableSepRe.MatchString(trimmed) {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func transformOutsideFences(s string, fn func(string) string) string {
	lines := strings.Split(s, "\n")
	inFence := false
	for i, line := range lines {
		if isFenceDelimiter(strings.TrimSpace(line)) {
			inFence = !inFence
			continue
		}
		if !inFence {
			lines[i] = fn(line)
		}
	}
	return strings.Join(lines, "\n")
}

func isFenceDelimiter(trimmed string) bool {
	return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~")
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r > 127 {
			return true
		}
	}
	return false
}
