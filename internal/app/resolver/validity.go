package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// imageExtensions are still-image assets that extraction sometimes returns instead of audio.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// mediaTypeMarkers are content-type fragments accepted as audio/video.
var mediaTypeMarkers = []string{"audio", "video", "mp4", "mp3", "ogg", "webm"}

// IsPlayableURL reports whether a candidate stream URL passes the known-bad pattern checks.
// This is a string heuristic: it rejects thumbnails and storyboards, it does not prove the URL is audio.
func IsPlayableURL(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "storyboard") {
		return false
	}

	p := lower
	if u, err := url.Parse(lower); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	for _, img := range imageExtensions {
		if ext == img {
			return false
		}
	}
	return true
}

// IsMediaContentType reports whether a Content-Type looks like audio or video.
func IsMediaContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, m := range mediaTypeMarkers {
		if strings.Contains(ct, m) {
			return true
		}
	}
	return false
}

// Prober checks that a candidate stream URL is reachable.
// Probe returns an error only when the URL must be rejected.
type Prober interface {
	Probe(ctx context.Context, streamURL string) error
}

// ProbeConfig represents HTTP probe configuration.
type ProbeConfig struct {
	Timeout    time.Duration
	RangeBytes int
	UserAgent  string
}

// HTTPProber issues a small range request against the candidate URL.
type HTTPProber struct {
	httpClient *http.Client
	rangeBytes int
	userAgent  string
}

// NewHTTPProber creates a new HTTP prober.
func NewHTTPProber(cfg ProbeConfig) *HTTPProber {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rangeBytes := cfg.RangeBytes
	if rangeBytes <= 0 {
		rangeBytes = 1000
	}
	return &HTTPProber{
		httpClient: &http.Client{Timeout: timeout},
		rangeBytes: rangeBytes,
		userAgent:  cfg.UserAgent,
	}
}

// Probe requests the first bytes of the URL. Only a 404 is fatal;
// other failures are logged and the URL is accepted, since the player may still manage.
func (p *HTTPProber) Probe(ctx context.Context, streamURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		zlog.Warn().Msgf("resolver: probe request not built, continuing: url=%s error=%v", streamURL, err)
		return nil
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.rangeBytes))
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		zlog.Warn().Msgf("resolver: probe failed, continuing: url=%s error=%v", streamURL, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrapf(ErrNotFound, "%s", streamURL)
	}
	if resp.StatusCode >= 400 {
		zlog.Warn().Msgf("resolver: probe returned HTTP error, continuing: status=%d url=%s", resp.StatusCode, streamURL)
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if !IsMediaContentType(contentType) {
		zlog.Warn().Msgf("resolver: content type does not look like audio/video: content_type=%q url=%s", contentType, streamURL)
	} else {
		zlog.Debug().Msgf("resolver: probe ok: status=%d content_type=%s", resp.StatusCode, contentType)
	}
	return nil
}
