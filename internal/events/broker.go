// Package events fans crawl progress out to subscribers. The broker is
// transport-agnostic; the HTTP layer bridges subscriptions onto
// websockets.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/demoforge/mirror/internal/coverage"
)

// Event types carried on the subscriber channel.
const (
	TypeCoverageUpdate   = "coverage_update"
	TypeHeartbeat        = "heartbeat"
	TypeCrawlStarted     = "crawl_started"
	TypeCrawlCompleted   = "crawl_completed"
	TypePlateauDetected  = "quality_plateau_detected"
	TypeCrawlError       = "crawl_error"
	TypeRunCleanup       = "run_cleanup"
)

// subscriberBuffer bounds how far a slow subscriber may lag before it is
// dropped.
const subscriberBuffer = 16

// Message is one event delivered to a subscriber, already shaped for the
// wire.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Marshal renders the message as JSON.
func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Subscriber is one live subscription to a run's events.
type Subscriber struct {
	ID string

	// C receives events until the subscription is closed.
	C <-chan Message

	ch   chan Message
	once sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// hub is the subscriber set for a single run.
type hub struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	lastSnap    *coverage.Snapshot
}

// Broker is the per-run subscriber registry.
type Broker struct {
	mu     sync.Mutex
	hubs   map[string]*hub
	logger *logrus.Logger
}

// NewBroker creates an event broker.
func NewBroker(logger *logrus.Logger) *Broker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Broker{hubs: make(map[string]*hub), logger: logger}
}

func (b *Broker) hubFor(runID string, create bool) *hub {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hubs[runID]
	if !ok && create {
		h = &hub{subscribers: make(map[string]*Subscriber)}
		b.hubs[runID] = h
	}
	return h
}

// Subscribe attaches a new subscriber to a run. The current snapshot, if
// any, is delivered immediately.
func (b *Broker) Subscribe(runID string) *Subscriber {
	h := b.hubFor(runID, true)

	ch := make(chan Message, subscriberBuffer)
	sub := &Subscriber{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	snap := h.lastSnap
	h.mu.Unlock()

	if snap != nil {
		sub.ch <- Message{Type: TypeCoverageUpdate, Data: snap}
	}

	b.logger.WithFields(logrus.Fields{"run_id": runID, "subscriber": sub.ID}).Debug("subscriber attached")
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (b *Broker) Unsubscribe(runID string, sub *Subscriber) {
	h := b.hubFor(runID, false)
	if h == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.subscribers[sub.ID]; ok {
		delete(h.subscribers, sub.ID)
		sub.close()
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of live subscribers for a run.
func (b *Broker) SubscriberCount(runID string) int {
	h := b.hubFor(runID, false)
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// PublishSnapshot broadcasts a coverage snapshot and remembers it for
// late subscribers.
func (b *Broker) PublishSnapshot(runID string, snap coverage.Snapshot) {
	h := b.hubFor(runID, true)
	h.mu.Lock()
	h.lastSnap = &snap
	h.mu.Unlock()
	b.broadcast(runID, h, Message{Type: TypeCoverageUpdate, Data: snap})
}

// PublishEvent broadcasts a labeled crawl event.
func (b *Broker) PublishEvent(runID, eventType string, payload interface{}) {
	h := b.hubFor(runID, true)
	b.broadcast(runID, h, Message{Type: eventType, Data: payload})
}

// broadcast delivers a message to every subscriber without blocking. A
// subscriber whose buffer is full is dropped; slow readers must never
// stall the crawl.
func (b *Broker) broadcast(runID string, h *hub, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		select {
		case sub.ch <- msg:
		default:
			delete(h.subscribers, id)
			sub.close()
			b.logger.WithFields(logrus.Fields{"run_id": runID, "subscriber": id}).Debug("dropped slow subscriber")
		}
	}
}

// Cleanup emits a final run_cleanup event, then drops all subscribers
// and forgets the run.
func (b *Broker) Cleanup(runID string) {
	h := b.hubFor(runID, false)
	if h == nil {
		return
	}

	b.broadcast(runID, h, Message{Type: TypeRunCleanup, Data: map[string]string{"run_id": runID}})

	h.mu.Lock()
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		sub.close()
	}
	h.mu.Unlock()

	b.mu.Lock()
	delete(b.hubs, runID)
	b.mu.Unlock()
}

// Heartbeat pushes periodic snapshots for a run until stop is closed.
// Subscribers keep receiving progress even when the crawl is quiet.
func (b *Broker) Heartbeat(runID string, tracker *coverage.Tracker, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h := b.hubFor(runID, true)
			b.broadcast(runID, h, Message{Type: TypeHeartbeat, Data: tracker.Snapshot()})
		}
	}
}
