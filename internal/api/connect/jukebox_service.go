package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/app/jukebox"
	"github.com/osa030/tubejuke/internal/app/notification"
	"github.com/osa030/tubejuke/internal/app/queue"
	"github.com/osa030/tubejuke/internal/domain/track"
)

// Jukebox is the core the RPC surface delegates to.
type Jukebox interface {
	Enqueue(ctx context.Context, reference string) (track.QueueItem, error)
	Snapshot() queue.Snapshot
	History() []track.FinishedItem
	Skip() bool
	Subscribe(stream notification.Stream) (string, error)
	Unsubscribe(id string)
	Done() <-chan struct{}
}

// JukeboxService implements the JukeboxService RPC.
type JukeboxService struct {
	jukebox    Jukebox
	adminToken string
}

// NewJukeboxService creates a new JukeboxService.
// An empty adminToken leaves Skip open to everyone.
func NewJukeboxService(jukebox Jukebox, adminToken string) *JukeboxService {
	return &JukeboxService{
		jukebox:    jukebox,
		adminToken: adminToken,
	}
}

// Enqueue handles enqueue requests.
func (s *JukeboxService) Enqueue(
	ctx context.Context,
	req *connect.Request[EnqueueRequest],
) (*connect.Response[EnqueueResponse], error) {
	item, err := s.jukebox.Enqueue(ctx, req.Msg.Reference)
	if err != nil {
		if errors.Is(err, jukebox.ErrEmptyReference) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&EnqueueResponse{Item: item}), nil
}

// GetQueue returns the current item, pending items and recent history.
func (s *JukeboxService) GetQueue(
	ctx context.Context,
	req *connect.Request[GetQueueRequest],
) (*connect.Response[GetQueueResponse], error) {
	snap := s.jukebox.Snapshot()
	return connect.NewResponse(&GetQueueResponse{
		Current: snap.Current,
		Pending: snap.Pending,
		History: s.jukebox.History(),
	}), nil
}

// Skip abandons the current item.
func (s *JukeboxService) Skip(
	ctx context.Context,
	req *connect.Request[SkipRequest],
) (*connect.Response[SkipResponse], error) {
	skipped := s.jukebox.Skip()
	zlog.Info().Msgf("api: skip: skipped=%t peer=%s", skipped, req.Peer().Addr)
	return connect.NewResponse(&SkipResponse{Skipped: skipped}), nil
}

// Watch streams the current state, then every change until the client leaves.
func (s *JukeboxService) Watch(
	ctx context.Context,
	req *connect.Request[WatchRequest],
	stream *connect.ServerStream[Notification],
) error {
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID, err := s.jukebox.Subscribe(adapter)
	if err != nil {
		return connect.NewError(connect.CodeUnavailable, err)
	}
	zlog.Debug().Msgf("api: watch started: subscription_id=%s peer=%s", subscriptionID, req.Peer().Addr)

	select {
	case <-ctx.Done():
	case <-s.jukebox.Done():
	}

	s.jukebox.Unsubscribe(subscriptionID)
	adapter.close()
	zlog.Debug().Msgf("api: watch ended: subscription_id=%s", subscriptionID)
	return nil
}

// NewHandler returns the path prefix and handler serving every procedure.
func NewHandler(svc *JukeboxService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	skipOpts := opts
	if svc.adminToken != "" {
		skipOpts = append(append([]connect.HandlerOption{}, opts...),
			connect.WithInterceptors(NewAdminAuthInterceptor(svc.adminToken)))
	}

	mux := http.NewServeMux()
	mux.Handle(EnqueueProcedure, connect.NewUnaryHandler(EnqueueProcedure, svc.Enqueue, opts...))
	mux.Handle(GetQueueProcedure, connect.NewUnaryHandler(GetQueueProcedure, svc.GetQueue, opts...))
	mux.Handle(SkipProcedure, connect.NewUnaryHandler(SkipProcedure, svc.Skip, skipOpts...))
	mux.Handle(WatchProcedure, connect.NewServerStreamHandler(WatchProcedure, svc.Watch, opts...))
	return "/" + ServiceName + "/", mux
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Broadcast and the initial snapshot may call Send concurrently, and an
// abandoned Broadcast send may outlive the handler.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[Notification]
	closed bool
}

var errStreamClosed = errors.New("stream closed")

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(n)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
