package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demoforge/mirror/internal/coverage"
)

func receive(t *testing.T, sub *Subscriber) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C:
		require.True(t, ok, "channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestPublishSnapshotReachesSubscribers(t *testing.T) {
	b := NewBroker(nil)
	sub := b.Subscribe("run-1")
	defer b.Unsubscribe("run-1", sub)

	tracker := coverage.New("run-1")
	tracker.AddSitemapURLs([]string{"https://example.com/a", "https://example.com/b"})
	tracker.RecordCrawled("https://example.com/a", 0.7)
	b.PublishSnapshot("run-1", tracker.Snapshot())

	msg := receive(t, sub)
	assert.Equal(t, TypeCoverageUpdate, msg.Type)
	snap, ok := msg.Data.(coverage.Snapshot)
	require.True(t, ok)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 50.0, snap.CoveragePct)
}

func TestLateSubscriberGetsLastSnapshot(t *testing.T) {
	b := NewBroker(nil)

	tracker := coverage.New("run-1")
	b.PublishSnapshot("run-1", tracker.Snapshot())

	// Subscribing after the publish still yields the current state.
	sub := b.Subscribe("run-1")
	defer b.Unsubscribe("run-1", sub)

	msg := receive(t, sub)
	assert.Equal(t, TypeCoverageUpdate, msg.Type)
}

func TestEventsAreScopedPerRun(t *testing.T) {
	b := NewBroker(nil)
	subA := b.Subscribe("run-a")
	subB := b.Subscribe("run-b")
	defer b.Unsubscribe("run-a", subA)
	defer b.Unsubscribe("run-b", subB)

	b.PublishEvent("run-a", TypeCrawlStarted, map[string]string{"run_id": "run-a"})

	msg := receive(t, subA)
	assert.Equal(t, TypeCrawlStarted, msg.Type)

	select {
	case unexpected := <-subB.C:
		t.Fatalf("run-b subscriber received %v", unexpected)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := NewBroker(nil)
	sub := b.Subscribe("run-1")
	assert.Equal(t, 1, b.SubscriberCount("run-1"))

	// Fill the buffer and then overflow it; the subscriber never reads.
	for i := 0; i < subscriberBuffer+1; i++ {
		b.PublishEvent("run-1", TypeHeartbeat, i)
	}

	assert.Equal(t, 0, b.SubscriberCount("run-1"))

	// The channel drains its backlog and then reports closed.
	drained := 0
	for range sub.C {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(nil)
	sub := b.Subscribe("run-1")
	b.Unsubscribe("run-1", sub)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("run-1"))

	// Unsubscribing twice is harmless.
	b.Unsubscribe("run-1", sub)
}

func TestCleanupNotifiesAndForgets(t *testing.T) {
	b := NewBroker(nil)
	sub := b.Subscribe("run-1")

	b.Cleanup("run-1")

	msg := receive(t, sub)
	assert.Equal(t, TypeRunCleanup, msg.Type)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, b.SubscriberCount("run-1"))

	// Cleaning up an unknown run is a no-op.
	b.Cleanup("run-never-existed")
}

func TestHeartbeat(t *testing.T) {
	b := NewBroker(nil)
	sub := b.Subscribe("run-1")
	defer b.Unsubscribe("run-1", sub)

	tracker := coverage.New("run-1")
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		b.Heartbeat("run-1", tracker, 10*time.Millisecond, stop)
		close(done)
	}()

	msg := receive(t, sub)
	assert.Equal(t, TypeHeartbeat, msg.Type)

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat goroutine did not stop")
	}
}

func TestMessageMarshal(t *testing.T) {
	raw, err := Message{Type: TypeCrawlCompleted, Data: map[string]int{"pages": 7}}.Marshal()
	require.NoError(t, err)

	var decoded struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, TypeCrawlCompleted, decoded.Type)
	assert.Equal(t, 7, decoded.Data["pages"])
}
