package invidious

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetVideo(t *testing.T) {
	// Mock server
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/videos/dQw4w9WgXcQ", r.URL.Path)

		response := `{
			"videoId": "dQw4w9WgXcQ",
			"title": "Test Song",
			"lengthSeconds": 213,
			"videoThumbnails": [{"quality": "maxres", "url": "https://img/maxres.jpg"}],
			"adaptiveFormats": [
				{"url": "https://audio/low", "type": "audio/webm; codecs=\"opus\"", "bitrate": "50000", "itag": "249"},
				{"url": "https://video/high", "type": "video/mp4; codecs=\"avc1\"", "bitrate": "2500000", "itag": "137"},
				{"url": "https://audio/high", "type": "audio/mp4; codecs=\"mp4a.40.2\"", "bitrate": 130000, "itag": "140"}
			]
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{Instances: []string{server.URL + "/"}})
	require.NoError(t, err)

	video, err := client.GetVideo(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Test Song", video.Title)
	assert.Equal(t, 213, video.LengthSeconds)
	assert.Equal(t, "https://img/maxres.jpg", video.Thumbnail())

	best, ok := video.BestAudio()
	require.True(t, ok)
	assert.Equal(t, "https://audio/high", best.URL)
	assert.Equal(t, int64(130000), best.BitrateValue())
}

func TestGetVideo_NonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "Sign in to confirm you're not a bot"}`)
	}))
	defer server.Close()

	client, err := New(Config{Instances: []string{server.URL}})
	require.NoError(t, err)

	_, err = client.GetVideo(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "not a bot")
}

func TestGetVideo_FallsBackToNextInstance(t *testing.T) {
	var badCalls, goodCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodCalls.Add(1)
		fmt.Fprint(w, `{"title": "From good instance", "lengthSeconds": 10}`)
	}))
	defer good.Close()

	client, err := New(Config{Instances: []string{bad.URL, good.URL}, MaxAttempts: 2})
	require.NoError(t, err)

	video, err := client.GetVideo(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "From good instance", video.Title)
	assert.Equal(t, "abc", video.VideoID, "video ID defaults to the requested one")
	assert.Equal(t, int32(1), goodCalls.Load())
	assert.LessOrEqual(t, badCalls.Load(), int32(1))
}

func TestVideo_BestAudio_None(t *testing.T) {
	video := &Video{AdaptiveFormats: []Format{{URL: "https://video", Type: "video/mp4"}}}
	_, ok := video.BestAudio()
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Instances: []string{"  ", ""}})
	assert.ErrorIs(t, err, ErrNoInstances)

	client, err := New(Config{MaxAttempts: 100})
	require.NoError(t, err)
	assert.Equal(t, len(DefaultInstances), client.maxAttempts)
	assert.Equal(t, DefaultInstances[0], client.instances[0])

	_, err = client.GetVideo(context.Background(), "")
	assert.Error(t, err)
}
