package ytdlp

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `{
	"id": "dQw4w9WgXcQ",
	"title": "Test Song",
	"thumbnail": "https://i.ytimg.com/vi/dQw4w9WgXcQ/maxresdefault.jpg",
	"duration": 212.9,
	"url": "https://rr1.googlevideo.com/videoplayback?itag=140",
	"ext": "m4a",
	"formats": [
		{"format_id": "sb0", "ext": "mhtml", "url": "https://i.ytimg.com/sb/storyboard.jpg", "acodec": "none", "vcodec": "none"},
		{"format_id": "139", "ext": "m4a", "url": "https://rr1.googlevideo.com/videoplayback?itag=139", "acodec": "mp4a.40.5", "vcodec": "none", "abr": 48},
		{"format_id": "140", "ext": "m4a", "url": "https://rr1.googlevideo.com/videoplayback?itag=140", "acodec": "mp4a.40.2", "vcodec": "none", "abr": 129.5},
		{"format_id": "18", "ext": "mp4", "url": "https://rr1.googlevideo.com/videoplayback?itag=18", "acodec": "mp4a.40.2", "vcodec": "avc1.42001E"}
	]
}`

func TestClient_Extract(t *testing.T) {
	var gotName string
	var gotArgs []string
	client := NewWithRunner(Config{Path: "/usr/local/bin/yt-dlp"}, func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotName = name
		gotArgs = args
		return []byte(sampleOutput), nil, nil
	})

	info, err := client.Extract(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Options{Format: "bestaudio"})
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/yt-dlp", gotName)
	assert.Contains(t, gotArgs, "--dump-json")
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", gotArgs[len(gotArgs)-1])

	assert.Equal(t, "dQw4w9WgXcQ", info.ID)
	assert.Equal(t, "Test Song", info.Title)
	assert.Equal(t, 212, info.DurationSeconds())
	assert.Equal(t, "https://rr1.googlevideo.com/videoplayback?itag=140", info.StreamURL())

	audio := info.AudioFormats()
	require.Len(t, audio, 2)
	assert.Equal(t, "140", audio[0].FormatID, "highest bitrate first")
}

func TestClient_Extract_CommandFailure(t *testing.T) {
	client := NewWithRunner(Config{}, func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("ERROR: [youtube] xyz: Video unavailable\nmore details"), errors.New("exit status 1")
	})

	_, err := client.Extract(context.Background(), "https://www.youtube.com/watch?v=xyz", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrYtdlp))
	assert.Contains(t, err.Error(), "Video unavailable")
	assert.NotContains(t, err.Error(), "more details")
}

func TestClient_Extract_BadJSON(t *testing.T) {
	client := NewWithRunner(Config{}, func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("not json"), nil, nil
	})

	_, err := client.Extract(context.Background(), "ref", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrYtdlp))
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		contains [][]string
		absent   []string
	}{
		{
			name: "primary style",
			opts: Options{
				Format:        "bestaudio[ext=m4a]/bestaudio",
				UserAgent:     "UA-1",
				PlayerClients: []string{"android"},
				SkipProtocols: []string{"hls", "dash"},
			},
			contains: [][]string{
				{"-f", "bestaudio[ext=m4a]/bestaudio"},
				{"--user-agent", "UA-1"},
				{"--extractor-args", "youtube:player_client=android;skip=hls,dash"},
			},
			absent: []string{"--xff", "--no-warnings"},
		},
		{
			name: "dash excluded unless included",
			opts: Options{Format: "bestaudio/best"},
			contains: [][]string{
				{"--extractor-args", "youtube:skip=dash"},
			},
		},
		{
			name:   "dash included",
			opts:   Options{Format: "bestaudio/best", IncludeDASH: true},
			absent: []string{"--extractor-args"},
		},
		{
			name: "tertiary style",
			opts: Options{
				Format:           "bestaudio",
				Headers:          map[string]string{"Accept-Language": "en-US,en;q=0.5", "Accept": "*/*"},
				PlayerClients:    []string{"web"},
				IncludeDASH:      true,
				GeoBypassCountry: "US",
				NoWarnings:       true,
			},
			contains: [][]string{
				{"--add-header", "Accept:*/*"},
				{"--add-header", "Accept-Language:en-US,en;q=0.5"},
				{"--extractor-args", "youtube:player_client=web"},
				{"--xff", "US"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := BuildArgs("https://youtu.be/abc", tt.opts)
			for _, pair := range tt.contains {
				assert.True(t, hasPair(args, pair[0], pair[1]), "missing %v in %v", pair, args)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, args, a)
			}
			assert.Equal(t, []string{"--", "https://youtu.be/abc"}, args[len(args)-2:])
		})
	}
}

func TestInfo_StreamURL_RequestedFormats(t *testing.T) {
	info := &Info{
		RequestedFormats: []Format{
			{FormatID: "137", URL: "https://video", ACodec: "none", VCodec: "avc1"},
			{FormatID: "140", URL: "https://audio", ACodec: "mp4a.40.2", VCodec: "none"},
		},
	}
	assert.Equal(t, "https://audio", info.StreamURL())
	assert.Equal(t, "", (&Info{}).StreamURL())
}

func hasPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
