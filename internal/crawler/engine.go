package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrCanceled is returned by Run when the job's cancellation flag is set.
var ErrCanceled = errors.New("job canceled")

const (
	// defaultMaxPages bounds jobs that omit a page budget.
	defaultMaxPages = 100
	// maxRateLimitRetries abandons a URL stuck behind a rate limit.
	maxRateLimitRetries = 5
)

// Engine runs one crawl job end to end: a discovery pass that walks the
// in-scope link graph under politeness pacing, then a conversion pass over
// the fetched pages in navigation order. One engine instance serves one job
// and runs single-threaded.
type Engine struct {
	fetcher   Fetcher
	converter PageConverter
	jobs      JobStore
	notifier  ProgressNotifier
	log       *zap.Logger
	pacing    PacingConfig
}

// NewEngine wires an engine from its collaborators.
func NewEngine(fetcher Fetcher, converter PageConverter, jobs JobStore, notifier ProgressNotifier, log *zap.Logger) *Engine {
	return &Engine{
		fetcher:   fetcher,
		converter: converter,
		jobs:      jobs,
		notifier:  notifier,
		log:       log,
		pacing:    DefaultPacing(),
	}
}

// fetchedPage caches one discovered page between the two passes.
type fetchedPage struct {
	html  []byte
	title string
}

// crawlState is the per-run mutable state.
type crawlState struct {
	scope      *ScopeConfig
	politeness *PolitenessController
	frontier   *Frontier
	pages      map[string]*fetchedPage
	fetchOrder []string
	navOrder   []string
	rateLimits map[string]int
	counters   JobCounters
	maxPages   int
	strict     bool
}

// Run executes the crawl and returns the converted pages in final document
// order. Returns ErrCanceled when the job's cancellation flag is observed.
func (e *Engine) Run(ctx context.Context, jobID string, params JobParameters) ([]PageRecord, JobCounters, error) {
	seed, err := NormalizeURL(params.SeedURL)
	if err != nil {
		return nil, JobCounters{}, fmt.Errorf("invalid seed url %q: %w", params.SeedURL, err)
	}
	scope, err := NewScope(seed, params.IncludePrefixes, params.ExcludePatterns)
	if err != nil {
		return nil, JobCounters{}, fmt.Errorf("build scope: %w", err)
	}

	maxPages := params.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	st := &crawlState{
		scope:      scope,
		politeness: NewPolitenessController(e.pacing),
		frontier:   NewFrontier(),
		pages:      make(map[string]*fetchedPage),
		rateLimits: make(map[string]int),
		maxPages:   maxPages,
		strict:     params.StrictBudget,
	}
	st.frontier.Push(seed, 0)

	if err := e.discover(ctx, jobID, seed, st); err != nil {
		return nil, st.counters, err
	}
	records, err := e.convert(ctx, jobID, st)
	if err != nil {
		return nil, st.counters, err
	}
	return records, st.counters, nil
}

// discover is pass one: fetch every in-scope page, cache its body, collect
// outbound links and the seed page's navigation order.
func (e *Engine) discover(ctx context.Context, jobID, seed string, st *crawlState) error {
	for st.frontier.Len() > 0 {
		if err := e.checkCanceled(ctx, jobID); err != nil {
			return err
		}
		if st.budgetExhausted() {
			e.log.Info("page budget exhausted, ending discovery",
				zap.String("job_id", jobID),
				zap.Int("fetched", st.counters.TotalFetched),
				zap.Int("pages", len(st.pages)))
			return nil
		}

		entry, _ := st.frontier.Pop()
		if !IsLikelyHTMLURL(entry.URL) {
			continue
		}

		if err := st.politeness.Wait(ctx); err != nil {
			return err
		}
		e.notifier.Progress("fetching", entry.URL, len(st.pages), st.maxPages, st.politeness.Delay())

		resp, err := e.fetcher.Fetch(ctx, FetchRequest{JobID: jobID, URL: entry.URL})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			st.counters.TotalFetched++
			st.counters.PagesFailed++
			st.politeness.OnFailure()
			e.log.Warn("fetch failed, skipping url",
				zap.String("job_id", jobID), zap.String("url", entry.URL), zap.Error(err))
			continue
		}

		if resp.StatusCode == 429 || resp.StatusCode == 503 {
			st.politeness.OnRateLimited(ParseRetryAfter(resp.Headers, time.Now()))
			st.rateLimits[entry.URL]++
			if st.rateLimits[entry.URL] <= maxRateLimitRetries {
				st.frontier.PushFront(entry)
				e.log.Info("rate limited, re-queued at front",
					zap.String("job_id", jobID), zap.String("url", entry.URL),
					zap.Int("status", resp.StatusCode))
			} else {
				st.counters.PagesFailed++
				e.log.Warn("rate limit retries exhausted, abandoning url",
					zap.String("job_id", jobID), zap.String("url", entry.URL))
			}
			continue
		}

		st.counters.TotalFetched++
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			st.counters.PagesFailed++
			st.politeness.OnFailure()
			e.log.Warn("non-success status, skipping url",
				zap.String("job_id", jobID), zap.String("url", entry.URL),
				zap.Int("status", resp.StatusCode))
			continue
		}
		if !IsHTMLResponse(resp.Headers.Get("Content-Type"), entry.URL) {
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			st.counters.PagesFailed++
			st.politeness.OnFailure()
			e.log.Warn("unparseable html, skipping url",
				zap.String("job_id", jobID), zap.String("url", entry.URL), zap.Error(err))
			continue
		}

		st.politeness.OnSuccess()
		st.pages[entry.URL] = &fetchedPage{
			html:  resp.Body,
			title: extractTitle(doc, entry.URL),
		}
		st.fetchOrder = append(st.fetchOrder, entry.URL)

		if entry.URL == seed {
			st.navOrder = extractNavOrder(doc, entry.URL, st.scope)
		}
		for _, link := range extractLinks(doc, entry.URL, st.scope) {
			st.frontier.Push(link, entry.Depth+1)
		}
	}
	return nil
}

// convert is pass two: turn each cached page into Markdown, seed navigation
// order first, then remaining pages in discovery order.
func (e *Engine) convert(ctx context.Context, jobID string, st *crawlState) ([]PageRecord, error) {
	order := st.conversionOrder()
	records := make([]PageRecord, 0, len(order))
	fileNames := make(map[string]int)

	for _, pageURL := range order {
		if err := e.checkCanceled(ctx, jobID); err != nil {
			return nil, err
		}
		if len(records) >= st.maxPages {
			break
		}
		page := st.pages[pageURL]
		e.notifier.Progress("converting", pageURL, len(records), st.maxPages, 0)

		name := PageFilename(pageURL)
		if n := fileNames[name]; n > 0 {
			base := strings.TrimSuffix(name, ".md")
			name = fmt.Sprintf("%s_%d.md", base, n)
		}
		fileNames[PageFilename(pageURL)]++

		records = append(records, PageRecord{
			URL:      pageURL,
			Title:    page.title,
			Markdown: e.converter.Convert(ctx, pageURL, page.html),
			Filename: name,
			Index:    len(records),
		})
		st.counters.PagesCrawled++
	}
	return records, nil
}

// conversionOrder interleaves the seed's navigation order with discovery
// order: nav-listed pages first, everything else appended as discovered.
func (st *crawlState) conversionOrder() []string {
	seen := make(map[string]struct{}, len(st.pages))
	order := make([]string, 0, len(st.pages))
	for _, u := range st.navOrder {
		if _, fetched := st.pages[u]; !fetched {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		order = append(order, u)
	}
	for _, u := range st.fetchOrder {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		order = append(order, u)
	}
	return order
}

// budgetExhausted applies the two budget modes: strict counts every fetch
// attempt, lenient counts pages actually captured for conversion.
func (st *crawlState) budgetExhausted() bool {
	if st.strict {
		return st.counters.TotalFetched >= st.maxPages
	}
	return len(st.pages) >= st.maxPages
}

func (e *Engine) checkCanceled(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canceled, err := e.jobs.IsCanceled(ctx, jobID)
	if err != nil {
		e.log.Warn("cancellation check failed", zap.String("job_id", jobID), zap.Error(err))
		return nil
	}
	if canceled {
		return ErrCanceled
	}
	return nil
}

// extractTitle prefers the page's first h1, then the document title, then
// the last URL path segment.
func extractTitle(doc *goquery.Document, pageURL string) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return collapseSpace(h1)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return collapseSpace(t)
	}
	if u, err := url.Parse(pageURL); err == nil {
		segments := splitPath(u.Path)
		if len(segments) > 0 {
			return segments[len(segments)-1]
		}
	}
	return pageURL
}

// Sidebar containers checked on the seed page, most specific first.
var navSelectors = []string{
	".theme-doc-sidebar-menu",
	".md-nav--primary",
	"nav.wy-nav-side",
	".sidebar",
	"[role=\"navigation\"]",
	"nav",
	"aside",
}

// extractNavOrder reads the seed page's sidebar and returns the in-scope
// page URLs it lists, in document order.
func extractNavOrder(doc *goquery.Document, baseURL string, scope *ScopeConfig) []string {
	for _, sel := range navSelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		links := resolveLinks(container, baseURL, scope)
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

// extractLinks returns every in-scope HTML link on the page, normalized and
// deduplicated, in document order.
func extractLinks(doc *goquery.Document, baseURL string, scope *ScopeConfig) []string {
	return resolveLinks(doc.Selection, baseURL, scope)
}

func resolveLinks(sel *goquery.Selection, baseURL string, scope *ScopeConfig) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var links []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		normalized, err := NormalizeURL(abs.String())
		if err != nil {
			return
		}
		if !scope.InScope(normalized) || !IsLikelyHTMLURL(normalized) {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
