// Package frontier implements the URL frontier for crawling: a priority
// queue of pending entries plus the monotonically growing seen set.
package frontier

import (
	"container/heap"
	"sync"
	"time"
)

// Entry represents one URL waiting in the frontier.
type Entry struct {
	// Canonical form of the URL
	CanonicalURL string

	// The URL this was discovered from (empty for seeds)
	DiscoveredFrom string

	// Crawl depth (0 for seeds)
	Depth int

	// Higher priority entries pop first; ties pop in insertion order
	PriorityScore float64

	// When this entry was added
	AddedAt time.Time

	seq int64
}

// Stats holds frontier statistics.
type Stats struct {
	Queued     int
	Seen       int
	TotalAdded int
	Duplicates int
}

// Frontier is a thread-safe priority frontier with a seen set. A URL is
// consumed at most once: once popped and marked seen it is never
// re-admitted.
type Frontier struct {
	mu         sync.Mutex
	queue      entryHeap
	queued     map[string]struct{}
	seen       map[string]struct{}
	totalAdded int
	duplicates int
	nextSeq    int64
}

// New creates an empty frontier.
func New() *Frontier {
	return &Frontier{
		queued: make(map[string]struct{}),
		seen:   make(map[string]struct{}),
	}
}

// Push adds an entry unless its URL is already queued or seen. It reports
// whether the entry was admitted.
func (f *Frontier) Push(entry *Entry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[entry.CanonicalURL]; dup {
		f.duplicates++
		return false
	}
	if _, dup := f.queued[entry.CanonicalURL]; dup {
		f.duplicates++
		return false
	}

	entry.seq = f.nextSeq
	f.nextSeq++
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}

	heap.Push(&f.queue, entry)
	f.queued[entry.CanonicalURL] = struct{}{}
	f.totalAdded++
	return true
}

// Pop removes and returns the highest-priority entry, or nil when empty.
func (f *Frontier) Pop() *Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queue.Len() == 0 {
		return nil
	}
	entry := heap.Pop(&f.queue).(*Entry)
	delete(f.queued, entry.CanonicalURL)
	return entry
}

// Size returns the number of queued entries.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Len()
}

// IsEmpty reports whether the frontier has no queued entries.
func (f *Frontier) IsEmpty() bool {
	return f.Size() == 0
}

// MarkSeen records a URL as consumed. The seen set only grows.
func (f *Frontier) MarkSeen(canonicalURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[canonicalURL] = struct{}{}
}

// HasSeen reports whether a URL has been consumed.
func (f *Frontier) HasSeen(canonicalURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[canonicalURL]
	return ok
}

// PendingEntries returns copies of the queued entries. Order is
// unspecified; priorities are preserved.
func (f *Frontier) PendingEntries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]Entry, 0, f.queue.Len())
	for _, entry := range f.queue {
		entries = append(entries, *entry)
	}
	return entries
}

// SeenURLs returns the consumed URLs in unspecified order.
func (f *Frontier) SeenURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	urls := make([]string, 0, len(f.seen))
	for url := range f.seen {
		urls = append(urls, url)
	}
	return urls
}

// Stats returns frontier statistics.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Queued:     f.queue.Len(),
		Seen:       len(f.seen),
		TotalAdded: f.totalAdded,
		Duplicates: f.duplicates,
	}
}

// entryHeap orders entries by descending priority, then insertion order.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].PriorityScore != h[j].PriorityScore {
		return h[i].PriorityScore > h[j].PriorityScore
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
