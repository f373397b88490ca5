package frontier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopOrdersByPriority(t *testing.T) {
	f := New()

	require.True(t, f.Push(&Entry{CanonicalURL: "https://example.com/low", PriorityScore: 1}))
	require.True(t, f.Push(&Entry{CanonicalURL: "https://example.com/high", PriorityScore: 10}))
	require.True(t, f.Push(&Entry{CanonicalURL: "https://example.com/mid", PriorityScore: 5}))

	assert.Equal(t, "https://example.com/high", f.Pop().CanonicalURL)
	assert.Equal(t, "https://example.com/mid", f.Pop().CanonicalURL)
	assert.Equal(t, "https://example.com/low", f.Pop().CanonicalURL)
	assert.Nil(t, f.Pop())
}

func TestTiesPopInInsertionOrder(t *testing.T) {
	f := New()
	for i := 0; i < 10; i++ {
		f.Push(&Entry{CanonicalURL: fmt.Sprintf("https://example.com/%d", i), PriorityScore: 3})
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("https://example.com/%d", i), f.Pop().CanonicalURL)
	}
}

func TestPushRejectsQueuedDuplicates(t *testing.T) {
	f := New()
	assert.True(t, f.Push(&Entry{CanonicalURL: "https://example.com/a"}))
	assert.False(t, f.Push(&Entry{CanonicalURL: "https://example.com/a", PriorityScore: 99}))

	stats := f.Stats()
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.TotalAdded)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestSeenURLsAreNeverReadmitted(t *testing.T) {
	f := New()
	f.Push(&Entry{CanonicalURL: "https://example.com/a"})

	entry := f.Pop()
	require.NotNil(t, entry)
	f.MarkSeen(entry.CanonicalURL)
	assert.True(t, f.HasSeen("https://example.com/a"))

	// Rediscovering the same URL later must not requeue it.
	assert.False(t, f.Push(&Entry{CanonicalURL: "https://example.com/a"}))
	assert.True(t, f.IsEmpty())
}

func TestPopFreesTheQueuedSlot(t *testing.T) {
	f := New()
	f.Push(&Entry{CanonicalURL: "https://example.com/a"})
	f.Pop()

	// Not yet marked seen, so the URL may be queued again.
	assert.True(t, f.Push(&Entry{CanonicalURL: "https://example.com/a"}))
}

func TestEntryMetadataSurvivesTheQueue(t *testing.T) {
	f := New()
	f.Push(&Entry{
		CanonicalURL:   "https://example.com/child",
		DiscoveredFrom: "https://example.com/",
		Depth:          2,
		PriorityScore:  0.7,
	})

	entry := f.Pop()
	require.NotNil(t, entry)
	assert.Equal(t, "https://example.com/", entry.DiscoveredFrom)
	assert.Equal(t, 2, entry.Depth)
	assert.Equal(t, 0.7, entry.PriorityScore)
	assert.False(t, entry.AddedAt.IsZero())
}

func TestPendingEntriesAndSeenURLs(t *testing.T) {
	f := New()
	f.Push(&Entry{CanonicalURL: "https://example.com/a", Depth: 1, PriorityScore: 2})
	f.Push(&Entry{CanonicalURL: "https://example.com/b", Depth: 2, PriorityScore: 1})
	f.MarkSeen("https://example.com/done")

	pending := f.PendingEntries()
	require.Len(t, pending, 2)
	urls := []string{pending[0].CanonicalURL, pending[1].CanonicalURL}
	assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, urls)

	assert.Equal(t, []string{"https://example.com/done"}, f.SeenURLs())

	// The snapshot is a copy; the queue is untouched.
	assert.Equal(t, 2, f.Size())
}

func TestStats(t *testing.T) {
	f := New()
	f.Push(&Entry{CanonicalURL: "https://example.com/a"})
	f.Push(&Entry{CanonicalURL: "https://example.com/b"})
	f.Push(&Entry{CanonicalURL: "https://example.com/a"})
	f.MarkSeen("https://example.com/c")

	stats := f.Stats()
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 1, stats.Seen)
	assert.Equal(t, 2, stats.TotalAdded)
	assert.Equal(t, 1, stats.Duplicates)
}
