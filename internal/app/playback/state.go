// Package playback drives sequential playback of queued items through a single player engine.
package playback

import (
	"context"
	"time"

	"github.com/osa030/tubejuke/internal/domain/track"
)

// State represents the coordinator state for the current item.
type State int

const (
	StateIdle      State = iota // Nothing is being played
	StateResolving              // Fresh stream URL is being resolved
	StatePlaying                // Player verified as playing
	StateFinishing              // Stopping and releasing the player
	StateStopped                // Item ended or was skipped
	StateFailed                 // Item could not be played
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StatePlaying:
		return "playing"
	case StateFinishing:
		return "finishing"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the transient state of the item being played.
type Session struct {
	Item      track.QueueItem
	State     State
	Tier      string    // Tier that produced the stream URL
	StartedAt time.Time // When the player was verified as playing

	skipped bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Skipped reports whether skip was requested for this session.
func (s Session) Skipped() bool {
	return s.skipped
}
