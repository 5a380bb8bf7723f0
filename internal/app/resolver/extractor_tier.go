package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/infra/ytdlp"
)

// Extractor defines the interface for the extraction backend.
type Extractor interface {
	Extract(ctx context.Context, reference string, opts ytdlp.Options) (*ytdlp.Info, error)
}

type ExtractorTierConfig struct {
	Format           string            `yaml:"format" mapstructure:"format" default:"bestaudio/best" validate:"required"`
	UserAgent        string            `yaml:"user_agent" mapstructure:"user_agent"`
	Headers          map[string]string `yaml:"headers" mapstructure:"headers"`
	PlayerClients    []string          `yaml:"player_clients" mapstructure:"player_clients"`
	SkipProtocols    []string          `yaml:"skip_protocols" mapstructure:"skip_protocols" validate:"dive,oneof=hls dash"`
	IncludeDASH      bool              `yaml:"include_dash" mapstructure:"include_dash"`
	GeoBypassCountry string            `yaml:"geo_bypass_country" mapstructure:"geo_bypass_country" validate:"omitempty,len=2"`
	RequireComplete  bool              `yaml:"require_complete" mapstructure:"require_complete"`
}

// ExtractorTier resolves references by running the extraction backend with tier-specific options.
type ExtractorTier struct {
	name      string
	extractor Extractor
	config    *ExtractorTierConfig
}

// NewExtractorTier creates a new ExtractorTier from raw settings.
func NewExtractorTier(name string, extractor Extractor, settings map[string]any) (*ExtractorTier, error) {
	var config ExtractorTierConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}

	return &ExtractorTier{
		name:      name,
		extractor: extractor,
		config:    &config,
	}, nil
}

// Name returns the tier name.
func (t *ExtractorTier) Name() string {
	return t.name
}

// Options returns the extraction options this tier runs with.
func (t *ExtractorTier) Options() ytdlp.Options {
	return ytdlp.Options{
		Format:           t.config.Format,
		UserAgent:        t.config.UserAgent,
		Headers:          t.config.Headers,
		PlayerClients:    t.config.PlayerClients,
		SkipProtocols:    t.config.SkipProtocols,
		IncludeDASH:      t.config.IncludeDASH,
		GeoBypassCountry: t.config.GeoBypassCountry,
		NoWarnings:       true,
	}
}

// Resolve implements Tier.
func (t *ExtractorTier) Resolve(ctx context.Context, reference string, mode Mode) (*Stream, error) {
	info, err := t.extractor.Extract(ctx, reference, t.Options())
	if err != nil {
		return nil, err
	}

	if t.config.RequireComplete && (info.ID == "" || info.Title == "") {
		return nil, errors.Wrapf(ErrIncomplete, "id=%q title=%q", info.ID, info.Title)
	}

	s := &Stream{
		ID:              info.ID,
		Title:           info.Title,
		Thumbnail:       info.Thumbnail,
		DurationSeconds: info.DurationSeconds(),
	}
	if s.ID == "" {
		s.ID = ExtractVideoID(reference)
	}
	if s.Title == "" {
		s.Title = reference
	}

	if mode == ModeStream {
		s.URL = info.StreamURL()
		if s.URL == "" {
			return nil, ErrNoStreamURL
		}
		zlog.Debug().Msgf("resolver: extracted stream: tier=%s ext=%s", t.name, info.Ext)
	}

	return s, nil
}
