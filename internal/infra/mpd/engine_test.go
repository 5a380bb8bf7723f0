package mpd

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/fhs/gompd/v2/mpd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubejuke/internal/app/playback"
)

// Mock MPD server state shared by every dialed client
type fakeServer struct {
	mu       sync.Mutex
	queue    []string
	status   mpd.Attrs
	volume   int
	commands []string
	dials    int
	closes   int
}

type fakeClient struct{ s *fakeServer }

func (c *fakeClient) record(cmd string) {
	c.s.commands = append(c.s.commands, cmd)
}

func (c *fakeClient) Clear() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.record("clear")
	c.s.queue = nil
	return nil
}

func (c *fakeClient) Add(uri string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.record("add " + uri)
	c.s.queue = append(c.s.queue, uri)
	return nil
}

func (c *fakeClient) Play(pos int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.record("play")
	c.s.status["state"] = "play"
	return nil
}

func (c *fakeClient) Stop() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.record("stop")
	c.s.status["state"] = "stop"
	return nil
}

func (c *fakeClient) Status() (mpd.Attrs, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := mpd.Attrs{}
	for k, v := range c.s.status {
		out[k] = v
	}
	return out, nil
}

func (c *fakeClient) SetVolume(volume int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.record("setvol")
	c.s.volume = volume
	return nil
}

func (c *fakeClient) Close() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.closes++
	return nil
}

func newTestEngine(t *testing.T, settings map[string]any) (*Engine, *fakeServer) {
	t.Helper()
	server := &fakeServer{status: mpd.Attrs{"state": "stop"}}
	engine, err := NewWithDialer(settings, func(addr, password string) (Client, error) {
		server.mu.Lock()
		defer server.mu.Unlock()
		server.dials++
		return &fakeClient{s: server}, nil
	})
	require.NoError(t, err)
	return engine, server
}

func TestEngine_Lifecycle(t *testing.T) {
	engine, server := newTestEngine(t, nil)

	h, err := engine.Load(context.Background(), "https://cdn/a", playback.LoadOptions{Volume: 80})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/a"}, server.queue)
	assert.Equal(t, playback.PlayerStopped, engine.State(h))

	require.NoError(t, engine.Play(h))
	assert.Equal(t, 80, server.volume)
	assert.Equal(t, playback.PlayerPlaying, engine.State(h))

	server.status["duration"] = "213.4"
	assert.Equal(t, 213, engine.DurationSeconds(h))

	require.NoError(t, engine.Stop(h))
	assert.Equal(t, playback.PlayerStopped, engine.State(h))

	require.NoError(t, engine.Release(h))
	assert.Empty(t, server.queue)
	assert.Equal(t, playback.PlayerStopped, engine.State(h), "released handle no longer owns the queue")
	require.NoError(t, engine.Release(h))

	assert.Equal(t, server.dials, server.closes, "every connection is closed")
}

func TestEngine_NewerHandleOwnsQueue(t *testing.T) {
	engine, server := newTestEngine(t, nil)

	old, err := engine.Load(context.Background(), "https://cdn/a", playback.LoadOptions{})
	require.NoError(t, err)
	h, err := engine.Load(context.Background(), "https://cdn/b", playback.LoadOptions{})
	require.NoError(t, err)
	require.NoError(t, engine.Play(h))

	require.NoError(t, engine.Stop(old))
	require.NoError(t, engine.Release(old))
	assert.Equal(t, playback.PlayerPlaying, engine.State(h))
	assert.Equal(t, []string{"https://cdn/b"}, server.queue)
	assert.NotContains(t, server.commands, "setvol", "volume 0 leaves the mixer alone")
}

func TestEngine_DialFailure(t *testing.T) {
	engine, err := NewWithDialer(nil, func(addr, password string) (Client, error) {
		return nil, errors.New("connection refused")
	})
	require.NoError(t, err)

	_, err = engine.Load(context.Background(), "https://cdn/a", playback.LoadOptions{})
	assert.ErrorContains(t, err, "localhost:6600")
}

func TestEngine_ForeignHandle(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	assert.ErrorIs(t, engine.Play("not a handle"), ErrForeignHandle)
	assert.Equal(t, playback.PlayerStopped, engine.State("not a handle"))
}

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(map[string]any{"addr": "no-port"})
	assert.Error(t, err)

	engine, err := New(map[string]any{"addr": "mpd.local:6601", "password": "secret"})
	require.NoError(t, err)
	assert.Equal(t, "mpd.local:6601", engine.config.Addr)
	assert.Equal(t, "secret", engine.config.Password)
}

func TestStateFromStatus(t *testing.T) {
	assert.Equal(t, playback.PlayerPlaying, stateFromStatus(mpd.Attrs{"state": "play"}))
	assert.Equal(t, playback.PlayerPaused, stateFromStatus(mpd.Attrs{"state": "pause"}))
	assert.Equal(t, playback.PlayerStopped, stateFromStatus(mpd.Attrs{"state": "stop"}))
	assert.Equal(t, playback.PlayerError, stateFromStatus(mpd.Attrs{"state": "play", "error": "decoder failed"}))
	assert.Equal(t, playback.PlayerNothing, stateFromStatus(mpd.Attrs{}))
}

func TestDurationFromStatus(t *testing.T) {
	assert.Equal(t, 120, durationFromStatus(mpd.Attrs{"duration": "120.9"}))
	assert.Equal(t, 95, durationFromStatus(mpd.Attrs{"time": "12:95"}))
	assert.Equal(t, 0, durationFromStatus(mpd.Attrs{"time": "12:0"}))
	assert.Equal(t, 0, durationFromStatus(mpd.Attrs{}))
}
