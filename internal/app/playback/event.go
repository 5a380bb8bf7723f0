package playback

import "github.com/osa030/tubejuke/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventItemStarted EventType = iota // Item verified as playing
	EventItemEnded                    // Item played to completion
	EventItemSkipped                  // Item was skipped
	EventItemFailed                   // Item could not be played
	EventQueueEmpty                   // Nothing left to play
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventItemStarted:
		return "item_started"
	case EventItemEnded:
		return "item_ended"
	case EventItemSkipped:
		return "item_skipped"
	case EventItemFailed:
		return "item_failed"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type   EventType
	Item   *track.QueueItem // nil for EventQueueEmpty
	State  State
	Tier   string // Tier that produced the stream (item_started only)
	Reason string // Failure reason (item_failed only)
}
