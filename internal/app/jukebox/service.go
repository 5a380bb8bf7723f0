// Package jukebox ties the queue, resolver, playback coordinator and
// notifications together behind the operations exposed to clients.
package jukebox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/app/notification"
	"github.com/osa030/tubejuke/internal/app/playback"
	"github.com/osa030/tubejuke/internal/app/queue"
	"github.com/osa030/tubejuke/internal/domain/track"
)

var ErrEmptyReference = errors.New("reference is empty")

// Resolver resolves metadata at enqueue time and streams at play time.
type Resolver interface {
	ResolveMetadata(ctx context.Context, reference string) track.Metadata
	playback.StreamResolver
}

// Recorder receives service level measurements.
type Recorder interface {
	playback.Observer
	notification.CountObserver
	ObserveEnqueue(pending int)
	ObserveSkip(skipped bool)
	SetQueueDepth(pending int)
}

type nopRecorder struct{}

func (nopRecorder) ObservePlayback(string) {}
func (nopRecorder) SetWatchers(int)        {}
func (nopRecorder) ObserveEnqueue(int)     {}
func (nopRecorder) ObserveSkip(bool)       {}
func (nopRecorder) SetQueueDepth(int)      {}

// Service is the jukebox core.
type Service struct {
	store        *queue.Store
	resolver     Resolver
	coordinator  *playback.Coordinator
	notification *notification.Manager
	recorder     Recorder

	// Playback starts on the first enqueue and runs until Close
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	closed  bool
	done    chan struct{}
}

// New creates a service around store. recorder may be nil.
func New(store *queue.Store, resolver Resolver, player *playback.Player, config playback.Config, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:        store,
		resolver:     resolver,
		coordinator:  playback.NewCoordinator(store, resolver, player, config, recorder),
		notification: notification.NewManager(recorder),
		recorder:     recorder,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Enqueue resolves display metadata for reference and appends it to the queue.
// Resolution problems produce a degraded item rather than an error.
func (s *Service) Enqueue(ctx context.Context, reference string) (track.QueueItem, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return track.QueueItem{}, ErrEmptyReference
	}

	meta := s.resolver.ResolveMetadata(ctx, reference)
	item := s.store.Enqueue(track.NewQueueItem(uuid.New().String(), reference, meta))
	s.recorder.ObserveEnqueue(s.store.Len())

	zlog.Info().Msgf("jukebox: enqueued: entry_id=%s title=%q tier=%s degraded=%v",
		item.EntryID, item.Title, item.Tier, item.IsDegraded())

	n := s.snapshotNotification(notification.TypeEnqueued)
	n.Item = &item
	s.notification.Broadcast(n)

	s.Start()
	return item, nil
}

// Snapshot returns the current item and pending items.
func (s *Service) Snapshot() queue.Snapshot {
	return s.store.Snapshot()
}

// History returns recently finished items, oldest first.
func (s *Service) History() []track.FinishedItem {
	return s.store.History()
}

// Session returns the playback session, if any.
func (s *Service) Session() (playback.Session, bool) {
	return s.coordinator.Session()
}

// Skip abandons the current item. Returns false when nothing is playing.
func (s *Service) Skip() bool {
	skipped := s.coordinator.Skip()
	s.recorder.ObserveSkip(skipped)
	return skipped
}

// Subscribe registers stream for change notifications and sends it the
// current state first.
func (s *Service) Subscribe(stream notification.Stream) (string, error) {
	id := s.notification.Subscribe(stream)
	if err := s.notification.Send(id, s.snapshotNotification(notification.TypeSnapshot)); err != nil {
		s.notification.Unsubscribe(id)
		return "", errors.Wrap(err, "failed to send snapshot")
	}
	return id, nil
}

// Unsubscribe removes a subscription.
func (s *Service) Unsubscribe(id string) {
	s.notification.Unsubscribe(id)
}

// Start launches the playback loop and the event relay.
// Enqueue calls it, so an explicit call is only needed to start early.
// Returns true if this call started playback.
func (s *Service) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return false
	}
	s.started = true
	s.coordinator.Start(s.ctx)
	go s.relay()
	return true
}

// Done is closed once the service has been closed and the event relay has drained.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Close stops playback and drops all subscriptions.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	s.cancel()
	if started {
		<-s.done
	} else {
		close(s.done)
	}
	s.notification.Close()
	zlog.Info().Msg("jukebox: closed")
}

// relay forwards coordinator events to watchers until the channel closes.
func (s *Service) relay() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("jukebox: event relay panicked: %v", r)
			go s.relay()
		}
	}()

	for event := range s.coordinator.Events() {
		s.handleEvent(event)
	}
	close(s.done)
}

func (s *Service) handleEvent(event playback.Event) {
	zlog.Debug().Msgf("jukebox: playback event: type=%s", event.Type)

	var typ notification.Type
	switch event.Type {
	case playback.EventItemStarted:
		typ = notification.TypeItemStarted
	case playback.EventItemEnded:
		typ = notification.TypeItemEnded
	case playback.EventItemSkipped:
		typ = notification.TypeItemSkipped
	case playback.EventItemFailed:
		typ = notification.TypeItemFailed
	case playback.EventQueueEmpty:
		typ = notification.TypeQueueEmpty
	default:
		return
	}

	n := s.snapshotNotification(typ)
	n.Item = event.Item
	n.Reason = event.Reason
	s.recorder.SetQueueDepth(len(n.Pending))
	s.notification.Broadcast(n)
}

func (s *Service) snapshotNotification(typ notification.Type) *notification.Notification {
	snap := s.store.Snapshot()
	return &notification.Notification{
		Type:      typ,
		Current:   snap.Current,
		Pending:   snap.Pending,
		History:   s.store.History(),
		Timestamp: time.Now(),
	}
}
