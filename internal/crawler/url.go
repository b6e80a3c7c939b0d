package crawler

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// NormalizeURL standardizes a URL to avoid duplicate frontier entries.
// It lowercases the scheme and host, removes default ports and fragments,
// and re-encodes the query in sorted order.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// Extensions that never resolve to an HTML document.
var nonHTMLExtensions = map[string]struct{}{
	".zip": {}, ".pdf": {}, ".tar": {}, ".bz2": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".bmp": {}, ".ico": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".ogg": {}, ".webm": {},
	".exe": {}, ".msi": {}, ".dmg": {}, ".deb": {}, ".rpm": {}, ".whl": {},
	".txt": {}, ".csv": {}, ".json": {}, ".xml": {}, ".yaml": {}, ".yml": {},
	".css": {}, ".js": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {}, ".odt": {},
}

// IsLikelyHTMLURL guesses from URL shape alone whether the target is an HTML
// page: directory-style paths, .html/.htm, and extensionless paths pass.
func IsLikelyHTMLURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	if p == "" || strings.HasSuffix(p, "/") ||
		strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm") {
		return true
	}
	base := path.Base(p)
	if !strings.Contains(base, ".") {
		return true
	}
	_, nonHTML := nonHTMLExtensions[path.Ext(base)]
	return !nonHTML
}

// IsHTMLResponse decides whether a fetched resource is HTML, preferring the
// Content-Type header and falling back to URL shape when it is missing or
// generic.
func IsHTMLResponse(contentType, rawURL string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") {
		return true
	}
	for _, nonHTML := range []string{
		"application/pdf", "image/", "application/zip", "text/plain",
		"text/css", "application/javascript", "application/json", "application/xml",
	} {
		if strings.Contains(ct, nonHTML) {
			return false
		}
	}
	if ct == "" || strings.Contains(ct, "application/octet-stream") {
		return IsLikelyHTMLURL(rawURL)
	}
	return false
}

var unsafeSegmentChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

const (
	maxSegmentLen  = 50
	maxFilenameLen = 150
)

// SafePathSegments converts a URL path into filesystem-safe segments. Each
// segment is percent-decoded, reduced to a safe character set and
// length-capped. Empty paths map to ["index"].
func SafePathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return []string{"index"}
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return []string{"index"}
	}
	var segments []string
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		if decoded, err := url.PathUnescape(part); err == nil {
			part = decoded
		}
		part = unsafeSegmentChars.ReplaceAllString(part, "_")
		if len(part) > maxSegmentLen {
			part = part[:maxSegmentLen]
		}
		segments = append(segments, part)
	}
	if len(segments) == 0 {
		return []string{"index"}
	}
	if strings.HasSuffix(u.Path, "/") {
		segments = append(segments, "index")
	}
	return segments
}

// PageFilename derives the flat .md filename used in the order manifest and
// as the assembler's anchor base.
func PageFilename(rawURL string) string {
	base := strings.Join(SafePathSegments(rawURL), "_")
	if len(base) > maxFilenameLen {
		base = base[:maxFilenameLen]
	}
	return base + ".md"
}

// PageRelPath derives the archive-relative path for a page file, mirroring
// the URL path as sanitized directories.
func PageRelPath(rawURL string) string {
	segments := SafePathSegments(rawURL)
	return path.Join(segments...) + ".md"
}
