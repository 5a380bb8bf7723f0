package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in), tt.in)
	}
}

func TestInit_FileOutputIsJSON(t *testing.T) {
	prev := zlog.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, Init(Config{Output: path, File: path, Level: "info"}))

	zlog.Debug().Msg("hidden")
	zlog.Info().Msgf("playback: now playing: title=%q", "Song")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, `playback: now playing: title="Song"`, entry["message"])
	assert.NotEmpty(t, entry["time"])
	assert.NotContains(t, entry, "caller")
}

func TestInit_UnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "server.log")
	assert.Error(t, Init(Config{Output: path, File: path}))
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "internal", "app", "playback", "coordinator.go")
	assert.Equal(t, filepath.Join("playback", "coordinator.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}
