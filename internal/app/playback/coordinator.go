package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/app/resolver"
	"github.com/osa030/tubejuke/internal/domain/track"
)

// Config holds coordinator configuration.
type Config struct {
	DefaultDuration time.Duration // Wait bound when neither engine nor item knows the length
	PollInterval    time.Duration // Player state polling while playing
	IdleInterval    time.Duration // Sleep between queue checks when idle
	Settle          time.Duration // Wait before the first startup check
	RetrySettle     time.Duration // Wait after the startup retry
	EventBufferSize int
}

func (c Config) withDefaults() Config {
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = 300 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = time.Second
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 100
	}
	return c
}

// Queue is the subset of the queue store the coordinator consumes.
type Queue interface {
	TrySetCurrentFromPending() (track.QueueItem, bool)
	ClearCurrentIf(entryID string) bool
	IsCurrent(entryID string) bool
	Finish(item track.QueueItem, outcome track.Outcome, reason string)
}

// StreamResolver resolves a fresh playable URL at play time.
type StreamResolver interface {
	ResolveStream(ctx context.Context, reference string) (*resolver.Resolution, error)
}

// Observer receives per-item playback outcomes.
type Observer interface {
	ObservePlayback(outcome string)
}

// Coordinator is the single consumer of the queue.
type Coordinator struct {
	queue    Queue
	resolver StreamResolver
	player   *Player
	config   Config
	observer Observer

	mu      sync.Mutex
	session *Session

	startOnce sync.Once
	done      chan struct{}

	eventCh chan Event
}

// NewCoordinator creates a new playback coordinator.
// observer may be nil.
func NewCoordinator(queue Queue, streams StreamResolver, player *Player, config Config, observer Observer) *Coordinator {
	config = config.withDefaults()
	return &Coordinator{
		queue:    queue,
		resolver: streams,
		player:   player,
		config:   config,
		observer: observer,
		done:     make(chan struct{}),
		eventCh:  make(chan Event, config.EventBufferSize),
	}
}

// Events returns the event channel. It is closed when the loop exits.
func (c *Coordinator) Events() <-chan Event {
	return c.eventCh
}

// Start launches the playback loop. Calls after the first are no-ops.
// Returns true if this call started the loop.
func (c *Coordinator) Start(ctx context.Context) bool {
	started := false
	c.startOnce.Do(func() {
		started = true
		zlog.Info().Msg("playback: coordinator started")
		go c.run(ctx)
	})
	return started
}

// Done is closed once the loop has exited after its context was cancelled.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Session returns a copy of the active session.
func (c *Coordinator) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{State: StateIdle}, false
	}
	s := *c.session
	s.ctx, s.cancel = nil, nil
	return s, true
}

// Skip abandons the current item. Returns false when nothing is playing.
func (c *Coordinator) Skip() bool {
	c.mu.Lock()
	sess := c.session
	if sess == nil || sess.skipped {
		c.mu.Unlock()
		return false
	}
	sess.skipped = true
	cancel := sess.cancel
	item := sess.Item
	state := sess.State
	c.mu.Unlock()

	zlog.Info().Msgf("playback: skip requested: title=%q state=%s", item.Title, state)

	cancel()
	if err := c.player.Stop(); err != nil {
		zlog.Warn().Msgf("playback: stop on skip failed: error=%v", err)
	}
	// The loop may already have moved on to the next item
	c.queue.ClearCurrentIf(item.EntryID)
	return true
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.eventCh)

	busy := false
	for {
		if ctx.Err() != nil {
			zlog.Info().Msg("playback: coordinator stopped")
			return
		}

		if sess, ok := c.next(ctx); ok {
			busy = true
			c.play(sess)
			continue
		}

		if busy {
			busy = false
			zlog.Info().Msg("playback: queue empty")
			c.sendEvent(Event{Type: EventQueueEmpty, State: StateIdle})
		}
		_ = sleep(ctx, c.config.IdleInterval)
	}
}

// next pops the head of the queue and registers its session.
// Both happen under the coordinator lock so Skip never sees a current item without a session.
func (c *Coordinator) next(ctx context.Context) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.queue.TrySetCurrentFromPending()
	if !ok {
		return nil, false
	}

	sessCtx, cancel := context.WithCancel(ctx)
	c.session = &Session{
		Item:   item,
		State:  StateResolving,
		ctx:    sessCtx,
		cancel: cancel,
	}
	return c.session, true
}

// play runs the per-item protocol. The deferred finalizer always releases the
// player, clears the current slot and records the outcome.
func (c *Coordinator) play(sess *Session) {
	item := sess.Item
	ctx := sess.ctx
	outcome := track.OutcomeFailed
	reason := ""

	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback: item crashed: title=%q panic=%v", item.Title, r)
			outcome = track.OutcomeFailed
			reason = fmt.Sprintf("panic: %v", r)
		}
		c.finish(sess, outcome, reason)
	}()

	zlog.Info().Msgf("playback: resolving stream: title=%q reference=%s", item.Title, item.Reference)
	res, err := c.resolver.ResolveStream(ctx, item.Reference)
	if c.skipped(sess) {
		outcome = track.OutcomeSkipped
		return
	}
	if err != nil {
		reason = err.Error()
		zlog.Error().Msgf("playback: could not resolve stream: title=%q error=%v", item.Title, err)
		return
	}

	if err := c.player.Load(ctx, res.URL); err != nil {
		reason = err.Error()
		zlog.Error().Msgf("playback: load failed: title=%q error=%v", item.Title, err)
		return
	}
	if c.skipped(sess) {
		outcome = track.OutcomeSkipped
		return
	}
	if err := c.player.Play(); err != nil {
		reason = err.Error()
		zlog.Error().Msgf("playback: play failed: title=%q error=%v", item.Title, err)
		return
	}
	if err := c.player.Verify(ctx, c.config.Settle, c.config.RetrySettle); err != nil {
		if c.skipped(sess) {
			outcome = track.OutcomeSkipped
			return
		}
		reason = err.Error()
		zlog.Error().Msgf("playback: player did not start: title=%q error=%v", item.Title, err)
		return
	}

	c.mu.Lock()
	sess.State = StatePlaying
	sess.Tier = res.Tier
	sess.StartedAt = time.Now()
	c.mu.Unlock()

	bound := c.durationBound(item)
	zlog.Info().Msgf("playback: now playing: title=%q tier=%s degraded=%v bound=%v",
		item.Title, res.Tier, res.Degraded, bound)
	c.sendEvent(Event{Type: EventItemStarted, Item: &item, State: StatePlaying, Tier: res.Tier})

	outcome, reason = c.wait(sess, bound)
}

// wait blocks until the duration bound elapses, the player leaves the playing
// state, or the session is skipped.
func (c *Coordinator) wait(sess *Session, bound time.Duration) (track.Outcome, string) {
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-sess.ctx.Done():
			if c.skipped(sess) {
				return track.OutcomeSkipped, ""
			}
			// Shutdown
			return track.OutcomePlayed, ""
		case <-ticker.C:
		}

		if elapsed := time.Since(start); elapsed >= bound {
			zlog.Info().Msgf("playback: duration bound reached: title=%q elapsed=%v", sess.Item.Title, elapsed)
			return track.OutcomePlayed, ""
		}
		switch state := c.player.State(); state {
		case PlayerPlaying:
		case PlayerError:
			return track.OutcomeFailed, "player reported an error during playback"
		default:
			zlog.Info().Msgf("playback: player left playing state: title=%q state=%s", sess.Item.Title, state)
			if c.skipped(sess) {
				return track.OutcomeSkipped, ""
			}
			return track.OutcomePlayed, ""
		}
	}
}

func (c *Coordinator) finish(sess *Session, outcome track.Outcome, reason string) {
	item := sess.Item
	if c.skipped(sess) {
		outcome = track.OutcomeSkipped
		reason = ""
	}

	c.mu.Lock()
	sess.State = StateFinishing
	c.mu.Unlock()

	sess.cancel()
	if err := c.player.Release(); err != nil {
		zlog.Warn().Msgf("playback: release failed: title=%q error=%v", item.Title, err)
	}
	c.queue.ClearCurrentIf(item.EntryID)
	c.queue.Finish(item, outcome, reason)

	final := StateStopped
	eventType := EventItemEnded
	switch outcome {
	case track.OutcomeSkipped:
		eventType = EventItemSkipped
	case track.OutcomeFailed:
		final = StateFailed
		eventType = EventItemFailed
	}

	c.mu.Lock()
	sess.State = final
	if c.session == sess {
		c.session = nil
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.ObservePlayback(string(outcome))
	}
	zlog.Info().Msgf("playback: item finished: title=%q outcome=%s", item.Title, outcome)
	c.sendEvent(Event{Type: eventType, Item: &item, State: final, Reason: reason})
}

// durationBound picks engine length, then item length, then the configured default.
func (c *Coordinator) durationBound(item track.QueueItem) time.Duration {
	if d := c.player.DurationSeconds(); d > 0 {
		return time.Duration(d) * time.Second
	}
	if item.DurationSeconds > 0 {
		return item.Duration()
	}
	return c.config.DefaultDuration
}

func (c *Coordinator) skipped(sess *Session) bool {
	c.mu.Lock()
	skipped := sess.skipped
	c.mu.Unlock()
	return skipped || !c.queue.IsCurrent(sess.Item.EntryID)
}

// sendEvent sends an event without blocking.
func (c *Coordinator) sendEvent(e Event) {
	select {
	case c.eventCh <- e:
	default:
		zlog.Warn().Msgf("playback: event dropped, channel full: type=%s", e.Type)
	}
}
