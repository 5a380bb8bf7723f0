// Package mpd plays streams through a Music Player Daemon.
package mpd

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/fhs/gompd/v2/mpd"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/app/playback"
)

// ErrForeignHandle is returned for handles created by another engine.
var ErrForeignHandle = errors.New("handle does not belong to the mpd engine")

type Config struct {
	Addr     string `yaml:"addr" mapstructure:"addr" default:"localhost:6600" validate:"required,hostname_port"`
	Password string `yaml:"password" mapstructure:"password"`
}

// Client is the subset of the MPD protocol the engine uses.
type Client interface {
	Clear() error
	Add(uri string) error
	Play(pos int) error
	Stop() error
	Status() (mpd.Attrs, error)
	SetVolume(volume int) error
	Close() error
}

// Dialer opens a client connection.
type Dialer func(addr, password string) (Client, error)

// media is the handle for one loaded URL.
type media struct {
	url    string
	volume int
}

// Engine implements playback.Engine on top of MPD.
// Every call dials its own connection, so calls are safe from any goroutine.
type Engine struct {
	config *Config
	dial   Dialer

	// MPD has a single queue: only the latest handle owns it.
	mu     sync.Mutex
	latest *media
}

// New creates a new MPD engine from raw settings.
func New(settings map[string]any) (*Engine, error) {
	return NewWithDialer(settings, func(addr, password string) (Client, error) {
		return mpd.DialAuthenticated("tcp", addr, password)
	})
}

// NewWithDialer creates an engine that connects through dial.
func NewWithDialer(settings map[string]any, dial Dialer) (*Engine, error) {
	var config Config
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	return &Engine{config: &config, dial: dial}, nil
}

func (e *Engine) withMpd(fn func(c Client) error) error {
	client, err := e.dial(e.config.Addr, e.config.Password)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to mpd at %s", e.config.Addr)
	}
	defer client.Close()
	return fn(client)
}

// Load replaces the MPD queue with url.
func (e *Engine) Load(ctx context.Context, url string, opts playback.LoadOptions) (playback.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err := e.withMpd(func(c Client) error {
		if err := c.Clear(); err != nil {
			return errors.Wrap(err, "clear")
		}
		return errors.Wrap(c.Add(url), "add")
	})
	if err != nil {
		return nil, err
	}

	m := &media{url: url, volume: opts.Volume}
	e.mu.Lock()
	e.latest = m
	e.mu.Unlock()

	zlog.Debug().Msgf("mpd: loaded: addr=%s", e.config.Addr)
	return m, nil
}

// Play starts the first queue entry and applies the volume.
func (e *Engine) Play(h playback.Handle) error {
	m, err := e.owned(h)
	if err != nil {
		return err
	}
	return e.withMpd(func(c Client) error {
		if m.volume > 0 {
			if err := c.SetVolume(m.volume); err != nil {
				// Outputs without mixer reject setvol
				zlog.Warn().Msgf("mpd: setvol failed: volume=%d error=%v", m.volume, err)
			}
		}
		return errors.Wrap(c.Play(0), "play")
	})
}

// State maps the MPD status to a player state.
func (e *Engine) State(h playback.Handle) playback.PlayerState {
	if !e.isLatest(h) {
		return playback.PlayerStopped
	}
	var state playback.PlayerState
	err := e.withMpd(func(c Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		state = stateFromStatus(status)
		return nil
	})
	if err != nil {
		zlog.Warn().Msgf("mpd: status failed: error=%v", err)
		return playback.PlayerError
	}
	return state
}

// Stop stops MPD playback.
func (e *Engine) Stop(h playback.Handle) error {
	if !e.isLatest(h) {
		return nil
	}
	return e.withMpd(func(c Client) error {
		return c.Stop()
	})
}

// Release clears the MPD queue if h still owns it.
func (e *Engine) Release(h playback.Handle) error {
	e.mu.Lock()
	owns := e.latest != nil && e.latest == h
	if owns {
		e.latest = nil
	}
	e.mu.Unlock()

	if !owns {
		return nil
	}
	return e.withMpd(func(c Client) error {
		return c.Clear()
	})
}

// DurationSeconds returns the length MPD reports for the playing song.
func (e *Engine) DurationSeconds(h playback.Handle) int {
	if !e.isLatest(h) {
		return 0
	}
	var seconds int
	_ = e.withMpd(func(c Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		seconds = durationFromStatus(status)
		return nil
	})
	return seconds
}

func (e *Engine) owned(h playback.Handle) (*media, error) {
	m, ok := h.(*media)
	if !ok {
		return nil, ErrForeignHandle
	}
	return m, nil
}

func (e *Engine) isLatest(h playback.Handle) bool {
	m, ok := h.(*media)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest == m
}

func stateFromStatus(status mpd.Attrs) playback.PlayerState {
	if status["error"] != "" {
		return playback.PlayerError
	}
	switch status["state"] {
	case "play":
		return playback.PlayerPlaying
	case "pause":
		return playback.PlayerPaused
	case "stop":
		return playback.PlayerStopped
	default:
		return playback.PlayerNothing
	}
}

// durationFromStatus reads "duration", falling back to the total of "time" (elapsed:total).
func durationFromStatus(status mpd.Attrs) int {
	if d, err := strconv.ParseFloat(status["duration"], 64); err == nil && d > 0 {
		return int(d)
	}
	if _, total, ok := strings.Cut(status["time"], ":"); ok {
		if d, err := strconv.Atoi(total); err == nil && d > 0 {
			return d
		}
	}
	return 0
}
