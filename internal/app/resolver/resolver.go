// Package resolver turns a user-supplied reference into display metadata or a playable stream URL
// by trying an ordered list of extraction tiers.
package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrUnresolvable    = errors.New("no tier produced a playable stream")
	ErrNoStreamURL     = errors.New("no stream URL in result")
	ErrNotAudio        = errors.New("stream URL points to an image or storyboard")
	ErrNotFound        = errors.New("stream URL returned 404")
	ErrIncomplete      = errors.New("incomplete metadata")
	ErrNoVideoID       = errors.New("could not extract video ID from reference")
	ErrNoAudioFormat   = errors.New("no audio format available")
	ErrTierPanicked    = errors.New("tier panicked")
	ErrUnknownTierType = errors.New("unsupported tier type")
)

// Mode selects the shape of the result a tier must produce.
type Mode int

const (
	ModeMetadata Mode = iota // Display metadata only (enqueue time)
	ModeStream               // Directly playable stream URL (playback time)
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMetadata:
		return "metadata"
	case ModeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Stream is what a tier returns on success.
// URL is only required in ModeStream.
type Stream struct {
	ID              string
	Title           string
	Thumbnail       string
	DurationSeconds int
	URL             string
}

// Tier is one fallback strategy of the chain.
type Tier interface {
	// Name returns the tier name (used in logs and config).
	Name() string
	// Resolve resolves the reference in the given mode.
	Resolve(ctx context.Context, reference string, mode Mode) (*Stream, error)
}

// Resolution is the outcome of a stream-mode chain pass.
type Resolution struct {
	URL      string
	Tier     string  // Tier that produced the URL ("embed" for the last-resort fallback)
	Stream   *Stream // nil for the embed fallback
	Degraded bool    // True when URL is the embed page fallback
}

// Observer receives per-tier outcomes.
type Observer interface {
	ObserveTier(mode, tier, outcome string)
}

// Tier outcomes reported to the Observer.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeDegraded = "degraded" // embed fallback handed out
)
