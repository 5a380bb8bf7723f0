package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Errors
var (
	ErrStartupFailed = errors.New("player failed to start")
	ErrNoHandle      = errors.New("no media loaded")
)

// Player owns the single media handle of an engine.
// The mutex guards the handle only; engine calls run outside it.
type Player struct {
	mu     sync.Mutex
	engine Engine
	opts   LoadOptions
	handle Handle
}

// NewPlayer creates a new player on top of an engine.
func NewPlayer(engine Engine, opts LoadOptions) *Player {
	opts.NoVideo = true
	return &Player{
		engine: engine,
		opts:   opts,
	}
}

// Load stops and releases any previous handle, then loads url.
func (p *Player) Load(ctx context.Context, url string) error {
	if err := p.Release(); err != nil {
		zlog.Warn().Msgf("player: failed to release previous media: error=%v", err)
	}

	h, err := p.engine.Load(ctx, url, p.opts)
	if err != nil {
		return errors.Wrap(err, "failed to load media")
	}

	p.mu.Lock()
	prev := p.handle
	p.handle = h
	p.mu.Unlock()

	if prev != nil {
		p.discard(prev)
	}
	return nil
}

// Play starts playback of the loaded handle.
func (p *Player) Play() error {
	h := p.current()
	if h == nil {
		return ErrNoHandle
	}
	return p.engine.Play(h)
}

// State returns the state of the loaded handle.
func (p *Player) State() PlayerState {
	h := p.current()
	if h == nil {
		return PlayerNothing
	}
	return p.engine.State(h)
}

// DurationSeconds returns the media length reported by the engine, 0 if unknown.
func (p *Player) DurationSeconds() int {
	h := p.current()
	if h == nil {
		return 0
	}
	return p.engine.DurationSeconds(h)
}

// Stop stops playback. Safe to call with nothing loaded.
func (p *Player) Stop() error {
	h := p.current()
	if h == nil {
		return nil
	}
	return p.engine.Stop(h)
}

// Release stops and frees the loaded handle. Safe to call repeatedly.
func (p *Player) Release() error {
	p.mu.Lock()
	h := p.handle
	p.handle = nil
	p.mu.Unlock()

	if h == nil {
		return nil
	}
	if err := p.engine.Stop(h); err != nil {
		zlog.Warn().Msgf("player: stop before release failed: error=%v", err)
	}
	return p.engine.Release(h)
}

// Verify waits for the engine to settle and checks that it is playing.
// A player that is not yet playing gets one stop/play retry.
func (p *Player) Verify(ctx context.Context, settle, retrySettle time.Duration) error {
	if err := sleep(ctx, settle); err != nil {
		return err
	}

	state := p.State()
	if state == PlayerError {
		return errors.Wrap(ErrStartupFailed, "engine reported an error")
	}
	if state == PlayerPlaying {
		return nil
	}

	zlog.Warn().Msgf("player: not playing after settle, retrying: state=%s", state)
	if err := p.Stop(); err != nil {
		zlog.Warn().Msgf("player: stop before retry failed: error=%v", err)
	}
	if err := p.Play(); err != nil {
		return errors.Wrapf(ErrStartupFailed, "retry play: %v", err)
	}

	if err := sleep(ctx, retrySettle); err != nil {
		return err
	}
	if state := p.State(); state != PlayerPlaying {
		return errors.Wrapf(ErrStartupFailed, "state after retry: %s", state)
	}
	return nil
}

func (p *Player) current() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

func (p *Player) discard(h Handle) {
	_ = p.engine.Stop(h)
	if err := p.engine.Release(h); err != nil {
		zlog.Warn().Msgf("player: failed to release media: error=%v", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
