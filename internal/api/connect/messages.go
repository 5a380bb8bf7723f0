package connect

import (
	"github.com/osa030/tubejuke/internal/app/notification"
	"github.com/osa030/tubejuke/internal/domain/track"
)

// ServiceName is the fully-qualified RPC service name.
const ServiceName = "tubejuke.v1.JukeboxService"

// Procedure paths.
const (
	EnqueueProcedure  = "/" + ServiceName + "/Enqueue"
	GetQueueProcedure = "/" + ServiceName + "/GetQueue"
	SkipProcedure     = "/" + ServiceName + "/Skip"
	WatchProcedure    = "/" + ServiceName + "/Watch"
)

type EnqueueRequest struct {
	Reference string `json:"reference"`
}

type EnqueueResponse struct {
	Item track.QueueItem `json:"item"`
}

type GetQueueRequest struct{}

type GetQueueResponse struct {
	Current *track.QueueItem     `json:"current,omitempty"`
	Pending []track.QueueItem    `json:"pending"`
	History []track.FinishedItem `json:"history"`
}

type SkipRequest struct{}

type SkipResponse struct {
	Skipped bool `json:"skipped"`
}

type WatchRequest struct{}

// Notification is the Watch stream message.
type Notification = notification.Notification
