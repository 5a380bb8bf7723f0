// Package ytdlp provides metadata and stream extraction by running the yt-dlp binary.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrYtdlp wraps every failure of the yt-dlp process.
var ErrYtdlp = errors.New("ytdlp error")

// Runner executes a command and returns stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)

// Config represents yt-dlp client configuration.
type Config struct {
	Path    string        // yt-dlp executable
	Timeout time.Duration // Per-extraction timeout
}

// Options controls one extraction attempt.
type Options struct {
	Format           string
	UserAgent        string
	Headers          map[string]string
	PlayerClients    []string // youtube extractor player_client
	SkipProtocols    []string // youtube extractor skip (e.g. hls, dash)
	IncludeDASH      bool
	GeoBypassCountry string
	NoWarnings       bool
}

// Format represents one entry of the formats list.
type Format struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	URL        string  `json:"url"`
	ACodec     string  `json:"acodec"`
	VCodec     string  `json:"vcodec"`
	ABR        float64 `json:"abr"`
	FormatNote string  `json:"format_note"`
	Protocol   string  `json:"protocol"`
}

// IsAudioOnly reports whether the format carries audio and no video.
func (f Format) IsAudioOnly() bool {
	return f.ACodec != "" && f.ACodec != "none" && f.VCodec == "none"
}

// Info represents the subset of --dump-json output used here.
type Info struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Thumbnail        string   `json:"thumbnail"`
	Duration         float64  `json:"duration"`
	URL              string   `json:"url"`
	Ext              string   `json:"ext"`
	Formats          []Format `json:"formats"`
	RequestedFormats []Format `json:"requested_formats"`
}

// AudioFormats returns the audio-only formats, best bitrate first.
func (i *Info) AudioFormats() []Format {
	audio := make([]Format, 0)
	for _, f := range i.Formats {
		if f.IsAudioOnly() {
			audio = append(audio, f)
		}
	}
	sort.SliceStable(audio, func(a, b int) bool {
		return audio[a].ABR > audio[b].ABR
	})
	return audio
}

// StreamURL returns the directly playable URL selected by the format expression.
// When the selection merged several formats, the audio one is preferred.
func (i *Info) StreamURL() string {
	if i.URL != "" {
		return i.URL
	}
	for _, f := range i.RequestedFormats {
		if f.ACodec != "" && f.ACodec != "none" && f.URL != "" {
			return f.URL
		}
	}
	if audio := i.AudioFormats(); len(audio) > 0 {
		return audio[0].URL
	}
	return ""
}

// DurationSeconds returns the duration rounded down, 0 if unknown.
func (i *Info) DurationSeconds() int {
	if i.Duration <= 0 {
		return 0
	}
	return int(i.Duration)
}

// Client runs yt-dlp.
type Client struct {
	path    string
	timeout time.Duration
	run     Runner
}

// New creates a new yt-dlp client.
func New(cfg Config) *Client {
	path := cfg.Path
	if path == "" {
		path = "yt-dlp"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		path:    path,
		timeout: timeout,
		run:     execRunner,
	}
}

// NewWithRunner creates a client that executes commands through run.
func NewWithRunner(cfg Config, run Runner) *Client {
	c := New(cfg)
	c.run = run
	return c
}

// Extract runs yt-dlp for the reference and returns the parsed info.
func (c *Client) Extract(ctx context.Context, reference string, opts Options) (*Info, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := BuildArgs(reference, opts)
	zlog.Debug().Msgf("ytdlp: running: %s %s", c.path, strings.Join(args, " "))

	start := time.Now()
	stdout, stderr, err := c.run(ctx, c.path, args...)
	if err != nil {
		return nil, errors.Wrapf(ErrYtdlp, "%s: %v: %s", reference, err, firstLine(stderr))
	}

	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, errors.Wrapf(ErrYtdlp, "failed to parse output: %v", err)
	}

	zlog.Debug().Msgf("ytdlp: extracted: id=%s title=%q formats=%d audio_only=%d elapsed=%v",
		info.ID, info.Title, len(info.Formats), len(info.AudioFormats()), time.Since(start))
	if len(info.Formats) > 0 && len(info.AudioFormats()) == 0 {
		zlog.Warn().Msgf("ytdlp: no audio-only formats found: reference=%s", reference)
	}

	return &info, nil
}

// BuildArgs returns the yt-dlp arguments for one extraction attempt.
func BuildArgs(reference string, opts Options) []string {
	args := []string{
		"--dump-json",
		"--skip-download",
		"--no-playlist",
		"--no-check-certificates",
		"--default-search", "auto",
		"--source-address", "0.0.0.0",
	}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.UserAgent != "" {
		args = append(args, "--user-agent", opts.UserAgent)
	}

	headerKeys := make([]string, 0, len(opts.Headers))
	for k := range opts.Headers {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)
	for _, k := range headerKeys {
		args = append(args, "--add-header", fmt.Sprintf("%s:%s", k, opts.Headers[k]))
	}

	skip := append([]string(nil), opts.SkipProtocols...)
	if !opts.IncludeDASH && !containsString(skip, "dash") {
		skip = append(skip, "dash")
	}
	var extractorArgs []string
	if len(opts.PlayerClients) > 0 {
		extractorArgs = append(extractorArgs, "player_client="+strings.Join(opts.PlayerClients, ","))
	}
	if len(skip) > 0 {
		extractorArgs = append(extractorArgs, "skip="+strings.Join(skip, ","))
	}
	if len(extractorArgs) > 0 {
		args = append(args, "--extractor-args", "youtube:"+strings.Join(extractorArgs, ";"))
	}

	if opts.GeoBypassCountry != "" {
		args = append(args, "--xff", opts.GeoBypassCountry)
	}
	if opts.NoWarnings {
		args = append(args, "--no-warnings")
	}

	return append(args, "--", reference)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
