package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/osa030/tubejuke/internal/domain/track"
)

// Client calls the JukeboxService.
type Client struct {
	enqueue  *connect.Client[EnqueueRequest, EnqueueResponse]
	getQueue *connect.Client[GetQueueRequest, GetQueueResponse]
	skip     *connect.Client[SkipRequest, SkipResponse]
	watch    *connect.Client[WatchRequest, Notification]
	token    string
}

// NewClient creates a client for the server at baseURL.
// token is sent with Skip when non-empty.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		enqueue:  connect.NewClient[EnqueueRequest, EnqueueResponse](httpClient, baseURL+EnqueueProcedure, opts...),
		getQueue: connect.NewClient[GetQueueRequest, GetQueueResponse](httpClient, baseURL+GetQueueProcedure, opts...),
		skip:     connect.NewClient[SkipRequest, SkipResponse](httpClient, baseURL+SkipProcedure, opts...),
		watch:    connect.NewClient[WatchRequest, Notification](httpClient, baseURL+WatchProcedure, opts...),
		token:    token,
	}
}

// Enqueue adds reference to the queue.
func (c *Client) Enqueue(ctx context.Context, reference string) (track.QueueItem, error) {
	resp, err := c.enqueue.CallUnary(ctx, connect.NewRequest(&EnqueueRequest{Reference: reference}))
	if err != nil {
		return track.QueueItem{}, err
	}
	return resp.Msg.Item, nil
}

// GetQueue fetches the queue state.
func (c *Client) GetQueue(ctx context.Context) (*GetQueueResponse, error) {
	resp, err := c.getQueue.CallUnary(ctx, connect.NewRequest(&GetQueueRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Skip skips the current item.
func (c *Client) Skip(ctx context.Context) (bool, error) {
	req := connect.NewRequest(&SkipRequest{})
	if c.token != "" {
		req.Header().Set(AdminTokenHeader, c.token)
	}
	resp, err := c.skip.CallUnary(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Msg.Skipped, nil
}

// Watch calls fn for each notification until ctx ends, the server closes the
// stream, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(*Notification) error) error {
	stream, err := c.watch.CallServerStream(ctx, connect.NewRequest(&WatchRequest{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	return stream.Err()
}
