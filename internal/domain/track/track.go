// Package track provides the QueueItem domain entity.
package track

import (
	"fmt"
	"time"
)

// Sentinel IDs used when a reference could not be resolved.
const (
	IDUnknown = "unknown" // every resolver tier failed
	IDError   = "error"   // resolution aborted (cancelled or crashed)
)

// Metadata is the display information resolved for a reference.
type Metadata struct {
	ID              string `json:"id"`                  // Resolver-assigned ID (may be a sentinel)
	Title           string `json:"title"`               // Human-readable title
	Thumbnail       string `json:"thumbnail,omitempty"` // Thumbnail URL (optional)
	DurationSeconds int    `json:"duration_seconds"`    // 0 means unknown
	Tier            string `json:"tier,omitempty"`      // Tier that produced the metadata (empty for sentinels)
}

// QueueItem represents one playback request.
// It is created once at enqueue time and never mutated afterwards.
type QueueItem struct {
	EntryID         string    `json:"entry_id"`            // Unique per enqueue (uuid)
	Reference       string    `json:"reference"`           // Original source locator
	ID              string    `json:"id"`                  // Resolver-assigned ID (may be a sentinel)
	Title           string    `json:"title"`               // Human-readable title
	Thumbnail       string    `json:"thumbnail,omitempty"` // Thumbnail URL (optional)
	DurationSeconds int       `json:"duration_seconds"`    // 0 means unknown
	Tier            string    `json:"tier,omitempty"`      // Tier that produced the metadata
	EnqueuedAt      time.Time `json:"enqueued_at"`         // Time when added to queue
}

// NewQueueItem builds a queue item from resolved metadata.
// EnqueuedAt is left zero; the queue store stamps it on append.
func NewQueueItem(entryID, reference string, meta Metadata) QueueItem {
	duration := meta.DurationSeconds
	if duration < 0 {
		duration = 0
	}
	return QueueItem{
		EntryID:         entryID,
		Reference:       reference,
		ID:              meta.ID,
		Title:           meta.Title,
		Thumbnail:       meta.Thumbnail,
		DurationSeconds: duration,
		Tier:            meta.Tier,
	}
}

// IsDegraded reports whether the item carries a sentinel ID.
func (q QueueItem) IsDegraded() bool {
	return q.ID == IDUnknown || q.ID == IDError || q.ID == ""
}

// Duration returns the stored duration, or 0 if unknown.
func (q QueueItem) Duration() time.Duration {
	return time.Duration(q.DurationSeconds) * time.Second
}

// String returns a short description for logs.
func (q QueueItem) String() string {
	return fmt.Sprintf("%s (%s)", q.Title, q.Reference)
}

// Outcome is the final result of a queue item.
type Outcome string

const (
	OutcomePlayed  Outcome = "played"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FinishedItem is a queue item that has left the current slot.
type FinishedItem struct {
	Item       QueueItem `json:"item"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"` // Failure reason (empty unless failed)
	FinishedAt time.Time `json:"finished_at"`
}
