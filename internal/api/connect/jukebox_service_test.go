package connect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubejuke/internal/app/jukebox"
	"github.com/osa030/tubejuke/internal/app/notification"
	"github.com/osa030/tubejuke/internal/app/queue"
	"github.com/osa030/tubejuke/internal/domain/track"
)

// Mock jukebox for testing
type fakeJukebox struct {
	mu      sync.Mutex
	pending []track.QueueItem
	skips   int
	streams map[string]notification.Stream
	done    chan struct{}
}

func newFakeJukebox() *fakeJukebox {
	return &fakeJukebox{streams: map[string]notification.Stream{}, done: make(chan struct{})}
}

func (f *fakeJukebox) Enqueue(ctx context.Context, reference string) (track.QueueItem, error) {
	if reference == "" {
		return track.QueueItem{}, jukebox.ErrEmptyReference
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	item := track.QueueItem{EntryID: "e1", Reference: reference, ID: "abc", Title: "Song"}
	f.pending = append(f.pending, item)
	return item, nil
}

func (f *fakeJukebox) Snapshot() queue.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return queue.Snapshot{Pending: append([]track.QueueItem(nil), f.pending...)}
}

func (f *fakeJukebox) History() []track.FinishedItem {
	return []track.FinishedItem{{Item: track.QueueItem{EntryID: "old"}, Outcome: track.OutcomePlayed}}
}

func (f *fakeJukebox) Skip() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips++
	return true
}

func (f *fakeJukebox) Subscribe(stream notification.Stream) (string, error) {
	f.mu.Lock()
	f.streams["s1"] = stream
	f.mu.Unlock()
	return "s1", stream.Send(&notification.Notification{Type: notification.TypeSnapshot, SequenceNo: 0})
}

func (f *fakeJukebox) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.streams, id)
}

func (f *fakeJukebox) Done() <-chan struct{} { return f.done }

func (f *fakeJukebox) broadcast(n *notification.Notification) bool {
	f.mu.Lock()
	stream, ok := f.streams["s1"]
	f.mu.Unlock()
	if !ok {
		return false
	}
	return stream.Send(n) == nil
}

func newTestServer(t *testing.T, token string) (*fakeJukebox, *httptest.Server) {
	t.Helper()
	jb := newFakeJukebox()
	path, handler := NewHandler(NewJukeboxService(jb, token))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return jb, server
}

func TestJukeboxService_EnqueueAndGetQueue(t *testing.T) {
	_, server := newTestServer(t, "")
	client := NewClient(server.Client(), server.URL, "")
	ctx := context.Background()

	item, err := client.Enqueue(ctx, "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "e1", item.EntryID)
	assert.Equal(t, "Song", item.Title)

	q, err := client.GetQueue(ctx)
	require.NoError(t, err)
	assert.Nil(t, q.Current)
	require.Len(t, q.Pending, 1)
	assert.Equal(t, "https://youtu.be/abc", q.Pending[0].Reference)
	require.Len(t, q.History, 1)
	assert.Equal(t, track.OutcomePlayed, q.History[0].Outcome)
}

func TestJukeboxService_PlainJSONRequest(t *testing.T) {
	_, server := newTestServer(t, "")

	resp, err := server.Client().Post(server.URL+EnqueueProcedure, "application/json",
		strings.NewReader(`{"reference":"https://youtu.be/abc"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Item struct {
			EntryID string `json:"entry_id"`
			Title   string `json:"title"`
		} `json:"item"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "e1", body.Item.EntryID)
	assert.Equal(t, "Song", body.Item.Title)

	// No protobuf codec is registered.
	protoResp, err := server.Client().Post(server.URL+EnqueueProcedure, "application/proto", strings.NewReader(""))
	require.NoError(t, err)
	defer protoResp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, protoResp.StatusCode)
}

func TestJukeboxService_EnqueueBlankIsInvalidArgument(t *testing.T) {
	_, server := newTestServer(t, "")
	client := NewClient(server.Client(), server.URL, "")

	_, err := client.Enqueue(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestJukeboxService_SkipAuth(t *testing.T) {
	jb, server := newTestServer(t, "secret")
	ctx := context.Background()

	_, err := NewClient(server.Client(), server.URL, "").Skip(ctx)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = NewClient(server.Client(), server.URL, "wrong").Skip(ctx)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	assert.Zero(t, jb.skips)

	skipped, err := NewClient(server.Client(), server.URL, "secret").Skip(ctx)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, 1, jb.skips)

	// Other procedures stay open
	_, err = NewClient(server.Client(), server.URL, "").GetQueue(ctx)
	assert.NoError(t, err)
}

func TestJukeboxService_SkipOpenWithoutToken(t *testing.T) {
	_, server := newTestServer(t, "")
	skipped, err := NewClient(server.Client(), server.URL, "").Skip(context.Background())
	require.NoError(t, err)
	assert.True(t, skipped)
}

func TestJukeboxService_Watch(t *testing.T) {
	jb, server := newTestServer(t, "")
	client := NewClient(server.Client(), server.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *Notification, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Watch(ctx, func(n *Notification) error {
			received <- n
			return nil
		})
	}()

	first := <-received
	assert.Equal(t, notification.TypeSnapshot, first.Type)

	require.Eventually(t, func() bool {
		return jb.broadcast(&notification.Notification{
			Type:       notification.TypeItemStarted,
			SequenceNo: 7,
			Item:       &track.QueueItem{EntryID: "e9", Title: "Next"},
		})
	}, 2*time.Second, 10*time.Millisecond)

	second := <-received
	assert.Equal(t, notification.TypeItemStarted, second.Type)
	assert.Equal(t, uint64(7), second.SequenceNo)
	require.NotNil(t, second.Item)
	assert.Equal(t, "Next", second.Item.Title)

	close(jb.done)
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not end when the jukebox closed")
	}
}

func TestNotificationStreamAdapter_ClosedRejectsSend(t *testing.T) {
	a := &notificationStreamAdapter{}
	a.close()
	assert.ErrorIs(t, a.Send(&notification.Notification{}), errStreamClosed)
}

func TestJSONCodec(t *testing.T) {
	codec := jsonCodec{}
	assert.Equal(t, "json", codec.Name())

	data, err := codec.Marshal(&EnqueueRequest{Reference: "https://youtu.be/abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reference":"https://youtu.be/abc"}`, string(data))

	var req EnqueueRequest
	require.NoError(t, codec.Unmarshal(nil, &req))
	assert.Error(t, codec.Unmarshal([]byte("{"), &req))
}
