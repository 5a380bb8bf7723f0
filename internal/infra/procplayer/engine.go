// Package procplayer plays streams by launching an external player process per item.
package procplayer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/app/playback"
)

// URLPlaceholder is replaced by the stream URL in Args.
const URLPlaceholder = "{url}"

// Errors
var (
	ErrForeignHandle = errors.New("handle does not belong to the process engine")
	ErrEmptyURL      = errors.New("stream URL is empty")
)

type Config struct {
	Command string   `yaml:"command" mapstructure:"command" default:"cvlc" validate:"required"`
	Args    []string `yaml:"args" mapstructure:"args"`
	// VLCFlags appends caching, no-video and normalization flags derived from LoadOptions.
	VLCFlags    *bool `yaml:"vlc_flags" mapstructure:"vlc_flags" default:"true"`
	StopTimeout int   `yaml:"stop_timeout_ms" mapstructure:"stop_timeout_ms" default:"2000" validate:"gte=0"`
}

// defaultArgs runs cvlc headless, exiting at the end of the stream.
var defaultArgs = []string{"--intf", "dummy", "--quiet", "--play-and-exit", URLPlaceholder}

// process is the handle for one loaded URL.
type process struct {
	url  string
	args []string

	mu       sync.Mutex
	cmd      *exec.Cmd
	state    playback.PlayerState
	stopping bool
	exited   chan struct{}
	stderr   *tailBuffer
}

// Engine implements playback.Engine by running a player command.
type Engine struct {
	config *Config
}

// New creates a new process engine from raw settings.
func New(settings map[string]any) (*Engine, error) {
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
	if len(config.Args) == 0 {
		config.Args = defaultArgs
	}
	return &Engine{config: &config}, nil
}

// BuildArgs returns the command arguments for url.
func (e *Engine) BuildArgs(url string, opts playback.LoadOptions) []string {
	args := make([]string, 0, len(e.config.Args)+8)
	if e.config.VLCFlags == nil || *e.config.VLCFlags {
		args = append(args, vlcFlags(opts)...)
	}
	replaced := false
	for _, a := range e.config.Args {
		if strings.Contains(a, URLPlaceholder) {
			a = strings.ReplaceAll(a, URLPlaceholder, url)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, url)
	}
	return args
}

func vlcFlags(opts playback.LoadOptions) []string {
	var flags []string
	if opts.NetworkCachingMs > 0 {
		flags = append(flags, fmt.Sprintf("--network-caching=%d", opts.NetworkCachingMs))
	}
	if opts.FileCachingMs > 0 {
		flags = append(flags, fmt.Sprintf("--file-caching=%d", opts.FileCachingMs))
	}
	if opts.NoVideo {
		flags = append(flags, "--no-video")
	}
	if opts.Normalize {
		flags = append(flags, "--audio-filter=compressor", "--audio-replay-gain-mode=track")
	}
	if opts.Volume > 0 && opts.Volume < 100 {
		flags = append(flags, fmt.Sprintf("--gain=%.2f", float64(opts.Volume)/100))
	}
	return flags
}

// Load prepares a handle. The process starts on Play.
func (e *Engine) Load(ctx context.Context, url string, opts playback.LoadOptions) (playback.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	return &process{
		url:   url,
		args:  e.BuildArgs(url, opts),
		state: playback.PlayerOpening,
	}, nil
}

// Play launches the player process unless it is already running.
func (e *Engine) Play(h playback.Handle) error {
	p, ok := h.(*process)
	if !ok {
		return ErrForeignHandle
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return nil
	}

	cmd := exec.Command(e.config.Command, p.args...)
	p.stderr = &tailBuffer{limit: 4096}
	cmd.Stderr = p.stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Start(); err != nil {
		p.state = playback.PlayerError
		return errors.Wrapf(err, "failed to start %s", e.config.Command)
	}

	p.cmd = cmd
	p.stopping = false
	p.state = playback.PlayerPlaying
	p.exited = make(chan struct{})
	zlog.Debug().Msgf("procplayer: started: command=%s pid=%d", e.config.Command, cmd.Process.Pid)

	go p.wait(cmd, p.exited)
	return nil
}

func (p *process) wait(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	defer close(exited)

	if p.cmd == cmd {
		p.cmd = nil
	}
	switch {
	case err == nil || p.stopping:
		p.state = playback.PlayerStopped
	default:
		p.state = playback.PlayerError
		zlog.Warn().Msgf("procplayer: player exited with error: error=%v stderr=%q", err, p.stderr.String())
	}
}

// State returns the process state.
func (e *Engine) State(h playback.Handle) playback.PlayerState {
	p, ok := h.(*process)
	if !ok {
		return playback.PlayerNothing
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stop interrupts the process and kills it if it does not exit in time.
func (e *Engine) Stop(h playback.Handle) error {
	p, ok := h.(*process)
	if !ok {
		return ErrForeignHandle
	}

	p.mu.Lock()
	cmd := p.cmd
	exited := p.exited
	if cmd == nil {
		if p.state != playback.PlayerError {
			p.state = playback.PlayerStopped
		}
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	p.mu.Unlock()

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}

	select {
	case <-exited:
	case <-time.After(time.Duration(e.config.StopTimeout) * time.Millisecond):
		zlog.Warn().Msgf("procplayer: process ignored interrupt, killing: pid=%d", cmd.Process.Pid)
		_ = cmd.Process.Kill()
		<-exited
	}
	return nil
}

// Release stops the process. Nothing else is held.
func (e *Engine) Release(h playback.Handle) error {
	return e.Stop(h)
}

// DurationSeconds is unknown for external processes.
func (e *Engine) DurationSeconds(h playback.Handle) int {
	return 0
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
