package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/tubejuke/internal/infra/invidious"
)

// VideoAPI defines the interface for proxy API operations.
type VideoAPI interface {
	GetVideo(ctx context.Context, videoID string) (*invidious.Video, error)
}

type ProxyTierConfig struct {
	// Minimum audio bitrate (bits/s) accepted in stream mode. 0 accepts anything.
	MinBitrate int64 `yaml:"min_bitrate" mapstructure:"min_bitrate" default:"0" validate:"gte=0"`
}

// ProxyTier resolves references through an Invidious-compatible proxy API.
type ProxyTier struct {
	name   string
	api    VideoAPI
	config *ProxyTierConfig
}

// NewProxyTier creates a new ProxyTier from raw settings.
func NewProxyTier(name string, api VideoAPI, settings map[string]any) (*ProxyTier, error) {
	var config ProxyTierConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}

	return &ProxyTier{name: name, api: api, config: &config}, nil
}

// Name returns the tier name.
func (t *ProxyTier) Name() string {
	return t.name
}

// Resolve implements Tier.
func (t *ProxyTier) Resolve(ctx context.Context, reference string, mode Mode) (*Stream, error) {
	videoID := ExtractVideoID(reference)
	if videoID == "" {
		return nil, errors.Wrapf(ErrNoVideoID, "%s", reference)
	}

	video, err := t.api.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		ID:              video.VideoID,
		Title:           video.Title,
		Thumbnail:       video.Thumbnail(),
		DurationSeconds: video.LengthSeconds,
	}
	if s.Title == "" {
		s.Title = "Unknown Title"
	}
	if s.DurationSeconds < 0 {
		s.DurationSeconds = 0
	}

	if mode == ModeStream {
		best, ok := video.BestAudio()
		if !ok {
			return nil, errors.Wrapf(ErrNoAudioFormat, "video %s", videoID)
		}
		if t.config.MinBitrate > 0 && best.BitrateValue() < t.config.MinBitrate {
			return nil, errors.Wrapf(ErrNoAudioFormat, "best bitrate %d below %d", best.BitrateValue(), t.config.MinBitrate)
		}
		s.URL = best.URL
	}

	return s, nil
}
