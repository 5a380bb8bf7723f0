// Package invidious provides a client for the Invidious video API.
package invidious

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrNoInstances is returned when no instance is configured.
var ErrNoInstances = errors.New("no invidious instances configured")

// DefaultInstances is the list of public instances tried when none is configured.
var DefaultInstances = []string{
	"https://invidious.snopyta.org",
	"https://yewtu.be",
	"https://invidious.kavin.rocks",
	"https://vid.puffyan.us",
	"https://invidious.namazso.eu",
}

// Config represents Invidious client configuration.
type Config struct {
	Instances   []string
	Timeout     time.Duration
	MaxAttempts int // Number of instances tried per request (default 1)
}

// Format represents an adaptive format entry.
type Format struct {
	URL     string      `json:"url"`
	Type    string      `json:"type"`
	Bitrate json.Number `json:"bitrate"`
	Itag    string      `json:"itag"`
}

// BitrateValue returns the bitrate as an integer (0 if unparsable).
func (f Format) BitrateValue() int64 {
	v, err := f.Bitrate.Int64()
	if err != nil {
		return 0
	}
	return v
}

// IsAudio reports whether the format is audio-typed.
func (f Format) IsAudio() bool {
	return strings.HasPrefix(f.Type, "audio/")
}

// Thumbnail represents a thumbnail entry.
type Thumbnail struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// Video represents the response from /api/v1/videos/{id}.
type Video struct {
	VideoID         string      `json:"videoId"`
	Title           string      `json:"title"`
	LengthSeconds   int         `json:"lengthSeconds"`
	ThumbnailURL    string      `json:"thumbnailUrl"`
	VideoThumbnails []Thumbnail `json:"videoThumbnails"`
	AdaptiveFormats []Format    `json:"adaptiveFormats"`
}

// Thumbnail returns the best available thumbnail URL.
func (v *Video) Thumbnail() string {
	if v.ThumbnailURL != "" {
		return v.ThumbnailURL
	}
	if len(v.VideoThumbnails) > 0 {
		return v.VideoThumbnails[0].URL
	}
	return ""
}

// BestAudio returns the highest-bitrate audio format.
func (v *Video) BestAudio() (Format, bool) {
	audio := make([]Format, 0)
	for _, f := range v.AdaptiveFormats {
		if f.IsAudio() && f.URL != "" {
			audio = append(audio, f)
		}
	}
	if len(audio) == 0 {
		return Format{}, false
	}
	sort.SliceStable(audio, func(a, b int) bool {
		return audio[a].BitrateValue() > audio[b].BitrateValue()
	})
	return audio[0], true
}

// apiError represents an error response body.
type apiError struct {
	Error string `json:"error"`
}

// Client is an Invidious API client.
type Client struct {
	instances   []string
	maxAttempts int
	httpClient  *http.Client

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a new Invidious client.
func New(cfg Config) (*Client, error) {
	instances := cfg.Instances
	if len(instances) == 0 {
		instances = DefaultInstances
	}
	cleaned := make([]string, 0, len(instances))
	for _, inst := range instances {
		inst = strings.TrimRight(strings.TrimSpace(inst), "/")
		if inst != "" {
			cleaned = append(cleaned, inst)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoInstances
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if attempts > len(cleaned) {
		attempts = len(cleaned)
	}

	return &Client{
		instances:   cleaned,
		maxAttempts: attempts,
		httpClient:  &http.Client{Timeout: timeout},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// GetVideo fetches video information, trying instances in random order.
// Reference: https://docs.invidious.io/api/#get-apiv1videosid
func (c *Client) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	if videoID == "" {
		return nil, errors.New("video ID is required")
	}

	var lastErr error
	for i, instance := range c.pickInstances() {
		video, err := c.getVideo(ctx, instance, videoID)
		if err == nil {
			return video, nil
		}
		lastErr = err
		zlog.Warn().Msgf("invidious: instance failed: attempt=%d/%d instance=%s error=%v",
			i+1, c.maxAttempts, instance, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) getVideo(ctx context.Context, instance, videoID string) (*Video, error) {
	reqURL := instance + "/api/v1/videos/" + url.PathEscape(videoID)
	zlog.Debug().Msgf("invidious: requesting: url=%s", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return nil, errors.Newf("invidious API returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, errors.Newf("invidious API returned status %d", resp.StatusCode)
	}

	var video Video
	if err := json.Unmarshal(body, &video); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if video.VideoID == "" {
		video.VideoID = videoID
	}
	return &video, nil
}

// pickInstances returns up to maxAttempts instances in random order.
func (c *Client) pickInstances() []string {
	c.rngMu.Lock()
	order := c.rng.Perm(len(c.instances))
	c.rngMu.Unlock()

	picked := make([]string, 0, c.maxAttempts)
	for _, i := range order[:c.maxAttempts] {
		picked = append(picked, c.instances[i])
	}
	return picked
}
