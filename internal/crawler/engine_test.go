package crawler

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	responses map[string][]FetchResponse
	calls     []string
}

func (f *stubFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.calls = append(f.calls, req.URL)
	queue := f.responses[req.URL]
	if len(queue) == 0 {
		return FetchResponse{}, fmt.Errorf("connection refused: %s", req.URL)
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[req.URL] = queue[1:]
	}
	resp.URL = req.URL
	return resp, nil
}

type stubConverter struct{}

func (stubConverter) Convert(_ context.Context, pageURL string, _ []byte) string {
	return "converted " + pageURL
}

type stubJobStore struct {
	canceled      bool
	cancelChecks  int
	cancelAfterN  int
	statusUpdates []JobStatus
}

func (s *stubJobStore) CreateJob(context.Context, Job) error { return nil }
func (s *stubJobStore) UpdateJobStatus(_ context.Context, _ string, status JobStatus, _ string, _ JobCounters) error {
	s.statusUpdates = append(s.statusUpdates, status)
	return nil
}
func (s *stubJobStore) SetResult(context.Context, string, JobResult) error { return nil }
func (s *stubJobStore) GetJob(context.Context, string) (Job, error)        { return Job{}, nil }
func (s *stubJobStore) Cancel(context.Context, string) error               { s.canceled = true; return nil }
func (s *stubJobStore) IsCanceled(context.Context, string) (bool, error) {
	s.cancelChecks++
	if s.cancelAfterN > 0 && s.cancelChecks > s.cancelAfterN {
		return true, nil
	}
	return s.canceled, nil
}

type stubNotifier struct{ messages []string }

func (n *stubNotifier) Progress(message, _ string, _, _ int, _ time.Duration) {
	n.messages = append(n.messages, message)
}

func testPacing() PacingConfig {
	return PacingConfig{
		InitialDelay:      time.Millisecond,
		MinDelay:          time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		Decrement:         time.Millisecond,
		DecrementStreak:   5,
		PenaltyBox:        3 * time.Millisecond,
		DefaultRetryAfter: 2 * time.Millisecond,
	}
}

func htmlResponse(body string) FetchResponse {
	return FetchResponse{
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       []byte(body),
	}
}

func statusResponse(code int, headers http.Header) FetchResponse {
	if headers == nil {
		headers = http.Header{}
	}
	return FetchResponse{StatusCode: code, Headers: headers}
}

func newTestEngine(f Fetcher, store JobStore) (*Engine, *stubNotifier) {
	n := &stubNotifier{}
	e := NewEngine(f, stubConverter{}, store, n, zap.NewNop())
	e.pacing = testPacing()
	return e, n
}

const seedURL = "https://docs.example.com/guide/"

func seedPage(navLinks, bodyLinks []string) string {
	nav := ""
	for _, l := range navLinks {
		nav += fmt.Sprintf(`<a href=%q>x</a>`, l)
	}
	body := ""
	for _, l := range bodyLinks {
		body += fmt.Sprintf(`<a href=%q>x</a>`, l)
	}
	return fmt.Sprintf(`<html><head><title>Guide</title></head><body>
<main><h1>Guide</h1><p>welcome</p>%s</main>
<nav class="sidebar">%s</nav>
</body></html>`, body, nav)
}

func leafPage(title string) string {
	return fmt.Sprintf(`<html><body><main><h1>%s</h1><p>text</p></main></body></html>`, title)
}

func TestEngineNavOrderWinsOverDiscoveryOrder(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{
		seedURL: {htmlResponse(seedPage(
			[]string{"/guide/", "/guide/usage", "/guide/install"},
			[]string{"/guide/install", "/guide/usage"},
		))},
		"https://docs.example.com/guide/install": {htmlResponse(leafPage("Install"))},
		"https://docs.example.com/guide/usage":   {htmlResponse(leafPage("Usage"))},
	}}
	engine, _ := newTestEngine(fetcher, &stubJobStore{})

	records, counters, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, seedURL, records[0].URL)
	require.Equal(t, "https://docs.example.com/guide/usage", records[1].URL,
		"sidebar order outranks discovery order")
	require.Equal(t, "https://docs.example.com/guide/install", records[2].URL)
	require.Equal(t, 3, counters.PagesCrawled)
	require.Equal(t, 3, counters.TotalFetched)
	require.Equal(t, "Usage", records[1].Title)
	require.Equal(t, 1, records[1].Index)
	require.Equal(t, "converted https://docs.example.com/guide/usage", records[1].Markdown)
}

func TestEngineRateLimitRetriesWithoutBudgetCharge(t *testing.T) {
	limited := http.Header{"Retry-After": {"0"}}
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{
		seedURL: {htmlResponse(seedPage(nil, []string{"/guide/usage"}))},
		"https://docs.example.com/guide/usage": {
			statusResponse(http.StatusTooManyRequests, limited),
			htmlResponse(leafPage("Usage")),
		},
	}}
	engine, _ := newTestEngine(fetcher, &stubJobStore{})

	records, counters, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 2, counters.TotalFetched, "the rate-limited attempt is not charged")
	require.Equal(t, 0, counters.PagesFailed)
	// The retry happened immediately after the 429, before anything else.
	require.Equal(t, []string{
		seedURL,
		"https://docs.example.com/guide/usage",
		"https://docs.example.com/guide/usage",
	}, fetcher.calls)
}

func TestEngineAbandonsPermanentlyRateLimitedURL(t *testing.T) {
	var always []FetchResponse
	for i := 0; i <= maxRateLimitRetries; i++ {
		always = append(always, statusResponse(http.StatusServiceUnavailable, nil))
	}
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{seedURL: always}}
	engine, _ := newTestEngine(fetcher, &stubJobStore{})

	records, counters, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.NoError(t, err)
	require.Empty(t, records)
	require.Equal(t, 1, counters.PagesFailed)
}

func TestEngineBudgetModes(t *testing.T) {
	responses := func() map[string][]FetchResponse {
		return map[string][]FetchResponse{
			seedURL: {htmlResponse(seedPage(nil, []string{"/guide/missing", "/guide/usage", "/guide/install"}))},
			"https://docs.example.com/guide/missing": {statusResponse(http.StatusNotFound, nil)},
			"https://docs.example.com/guide/usage":   {htmlResponse(leafPage("Usage"))},
			"https://docs.example.com/guide/install": {htmlResponse(leafPage("Install"))},
		}
	}

	lenient, _ := newTestEngine(&stubFetcher{responses: responses()}, &stubJobStore{})
	records, counters, err := lenient.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 2,
	})
	require.NoError(t, err)
	require.Len(t, records, 2, "lenient mode counts captured pages, failures are free")
	require.Equal(t, 3, counters.TotalFetched)
	require.Equal(t, 1, counters.PagesFailed)

	strict, _ := newTestEngine(&stubFetcher{responses: responses()}, &stubJobStore{})
	records, counters, err = strict.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 2, StrictBudget: true,
	})
	require.NoError(t, err)
	require.Len(t, records, 1, "strict mode charges every fetch attempt")
	require.Equal(t, 2, counters.TotalFetched)
}

func TestEngineSkipsNonHTML(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{
		seedURL: {htmlResponse(seedPage(nil, []string{
			"/guide/logo.png",
			"/guide/download",
			"https://other.example.com/guide/external",
		}))},
		"https://docs.example.com/guide/download": {{
			StatusCode: http.StatusOK,
			Headers:    http.Header{"Content-Type": {"application/pdf"}},
			Body:       []byte("%PDF-1.4"),
		}},
	}}
	engine, _ := newTestEngine(fetcher, &stubJobStore{})

	records, counters, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.NoError(t, err)
	require.Len(t, records, 1, "only the seed converts")
	require.Equal(t, 2, counters.TotalFetched, "the pdf is fetched once, the image and external link never")
	require.NotContains(t, fetcher.calls, "https://docs.example.com/guide/logo.png")
	require.NotContains(t, fetcher.calls, "https://other.example.com/guide/external")
}

func TestEngineTransientFailureSkipsURL(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{
		seedURL: {htmlResponse(seedPage(nil, []string{"/guide/flaky", "/guide/usage"}))},
		// no responses registered for /guide/flaky: the fetcher errors
		"https://docs.example.com/guide/usage": {htmlResponse(leafPage("Usage"))},
	}}
	engine, _ := newTestEngine(fetcher, &stubJobStore{})

	records, counters, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 1, counters.PagesFailed)
}

func TestEngineCancellation(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{
		seedURL: {htmlResponse(seedPage(nil, []string{"/guide/usage"}))},
		"https://docs.example.com/guide/usage": {htmlResponse(leafPage("Usage"))},
	}}
	store := &stubJobStore{cancelAfterN: 1}
	engine, _ := newTestEngine(fetcher, store)

	_, _, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.ErrorIs(t, err, ErrCanceled)
}

func TestEngineRejectsBadSeed(t *testing.T) {
	engine, _ := newTestEngine(&stubFetcher{}, &stubJobStore{})
	_, _, err := engine.Run(context.Background(), "job-1", JobParameters{SeedURL: "not a url"})
	require.Error(t, err)
}

func TestEngineReportsProgress(t *testing.T) {
	fetcher := &stubFetcher{responses: map[string][]FetchResponse{
		seedURL: {htmlResponse(seedPage(nil, nil))},
	}}
	engine, notifier := newTestEngine(fetcher, &stubJobStore{})

	_, _, err := engine.Run(context.Background(), "job-1", JobParameters{
		SeedURL: seedURL, MaxPages: 10,
	})
	require.NoError(t, err)
	require.Contains(t, notifier.messages, "fetching")
	require.Contains(t, notifier.messages, "converting")
}
