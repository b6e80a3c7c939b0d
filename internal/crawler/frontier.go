package crawler

// FrontierEntry is one URL waiting to be fetched, with its link depth from
// the seed.
type FrontierEntry struct {
	URL   string
	Depth int
}

// Frontier is the FIFO work queue for one crawl. URLs are marked visited at
// enqueue time so the same page is never queued twice, even before it has
// been fetched. Not safe for concurrent use.
type Frontier struct {
	entries []FrontierEntry
	visited map[string]struct{}
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{visited: make(map[string]struct{})}
}

// Push appends a URL unless it was already enqueued. The URL must be
// normalized by the caller. Reports whether the entry was accepted.
func (f *Frontier) Push(url string, depth int) bool {
	if _, seen := f.visited[url]; seen {
		return false
	}
	f.visited[url] = struct{}{}
	f.entries = append(f.entries, FrontierEntry{URL: url, Depth: depth})
	return true
}

// PushFront re-queues an entry at the head of the line, used after a rate
// limit so the same URL is retried first. Skips the visited check.
func (f *Frontier) PushFront(entry FrontierEntry) {
	f.entries = append([]FrontierEntry{entry}, f.entries...)
}

// Pop removes and returns the next entry in FIFO order.
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if len(f.entries) == 0 {
		return FrontierEntry{}, false
	}
	entry := f.entries[0]
	f.entries = f.entries[1:]
	return entry, true
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	return len(f.entries)
}

// Seen reports whether a URL was ever enqueued.
func (f *Frontier) Seen(url string) bool {
	_, ok := f.visited[url]
	return ok
}
