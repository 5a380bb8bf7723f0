// Package notification fans queue and playback changes out to watchers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/osa030/tubejuke/internal/domain/track"
)

// Type identifies what changed.
type Type string

const (
	TypeSnapshot    Type = "snapshot"
	TypeEnqueued    Type = "enqueued"
	TypeItemStarted Type = "item_started"
	TypeItemEnded   Type = "item_ended"
	TypeItemSkipped Type = "item_skipped"
	TypeItemFailed  Type = "item_failed"
	TypeQueueEmpty  Type = "queue_empty"
)

// sendTimeout bounds a single subscriber send during Broadcast.
const sendTimeout = 500 * time.Millisecond

// Notification is one change together with the queue state after it.
type Notification struct {
	Type       Type                 `json:"type"`
	SequenceNo uint64               `json:"sequence_no"`
	Item       *track.QueueItem     `json:"item,omitempty"`
	Current    *track.QueueItem     `json:"current,omitempty"`
	Pending    []track.QueueItem    `json:"pending"`
	History    []track.FinishedItem `json:"history,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// CountObserver is told the subscriber count whenever it changes.
type CountObserver interface {
	SetWatchers(n int)
}

type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	observer      CountObserver

	sequenceNo   uint64
	sequenceNoMu sync.Mutex
}

// NewManager creates a new notification manager. observer may be nil.
func NewManager(observer CountObserver) *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		observer:      observer,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	n := len(m.subscriptions)
	m.mu.Unlock()

	m.observe(n)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	delete(m.subscriptions, subscriptionID)
	n := len(m.subscriptions)
	m.mu.Unlock()

	m.observe(n)
}

func (m *Manager) observe(n int) {
	if m.observer != nil {
		m.observer.SetWatchers(n)
	}
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps n and sends it to all subscribers.
// Each send runs in its own goroutine and is abandoned after sendTimeout,
// so a stalled watcher never blocks the others.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case <-done:
				// Failed streams are removed by their owner on return
			case <-ctx.Done():
			}
		}(sub)
	}
	wg.Wait()
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, n *Notification) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	return sub.stream.Send(n)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.subscriptions = make(map[string]*subscription)
	m.mu.Unlock()

	m.observe(0)
}
