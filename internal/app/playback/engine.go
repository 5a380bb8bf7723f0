package playback

import "context"

// PlayerState is the engine-reported state of a loaded handle.
type PlayerState int

const (
	PlayerNothing   PlayerState = iota // Nothing loaded
	PlayerOpening                      // Media is being opened
	PlayerBuffering                    // Media is buffering
	PlayerPlaying                      // Audio is playing
	PlayerPaused                       // Paused
	PlayerStopped                      // Stopped or reached the end
	PlayerError                        // Engine reported an error
)

// String returns the string representation of the player state.
func (s PlayerState) String() string {
	switch s {
	case PlayerNothing:
		return "nothing"
	case PlayerOpening:
		return "opening"
	case PlayerBuffering:
		return "buffering"
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	case PlayerStopped:
		return "stopped"
	case PlayerError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadOptions tunes how the engine opens a stream.
type LoadOptions struct {
	NetworkCachingMs int
	FileCachingMs    int
	NoVideo          bool
	Normalize        bool // Dynamic range compression and replay gain
	Volume           int  // 0-100
}

// Handle is an engine-specific media handle.
type Handle any

// Engine is the native playback capability.
// Implementations must tolerate Stop being called concurrently with State on the same handle.
type Engine interface {
	Load(ctx context.Context, url string, opts LoadOptions) (Handle, error)
	Play(h Handle) error
	State(h Handle) PlayerState
	Stop(h Handle) error
	Release(h Handle) error
	// DurationSeconds returns the media length, 0 if unknown.
	DurationSeconds(h Handle) int
}
