package resolver

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/infra/config"
	"github.com/osa030/tubejuke/internal/infra/invidious"
	"github.com/osa030/tubejuke/internal/infra/ytdlp"
)

// Backends holds the collaborators tiers are built on.
// Nil fields are created from configuration.
type Backends struct {
	Extractor Extractor
	VideoAPI  VideoAPI
	Prober    Prober
}

// NewChainFromConfig creates a resolver chain from configuration.
func NewChainFromConfig(cfg *config.ResolverConfig, backends Backends, observer Observer) (*Chain, error) {
	if len(cfg.Tiers) == 0 {
		return nil, errors.New("no resolver tiers configured")
	}

	if backends.Extractor == nil {
		backends.Extractor = ytdlp.New(ytdlp.Config{
			Path:    cfg.Ytdlp.Path,
			Timeout: cfg.Ytdlp.Timeout(),
		})
	}

	var tiers []Tier

	for i, tcfg := range cfg.Tiers {
		var tier Tier
		var err error
		zlog.Debug().Msgf("creating resolver tier: index=%d type=%s name=%s settings=%+v", i+1, tcfg.Type, tcfg.Name, tcfg.Settings)
		switch tcfg.Type {
		case "ytdlp":
			tier, err = NewExtractorTier(tcfg.Name, backends.Extractor, tcfg.Settings)

		case "invidious":
			if backends.VideoAPI == nil {
				api, apiErr := invidious.New(invidious.Config{
					Instances:   cfg.Invidious.Instances,
					Timeout:     cfg.Invidious.Timeout(),
					MaxAttempts: cfg.Invidious.MaxAttempts,
				})
				if apiErr != nil {
					return nil, errors.Wrapf(apiErr, "failed to create proxy client (tier index %d)", i)
				}
				backends.VideoAPI = api
			}
			tier, err = NewProxyTier(tcfg.Name, backends.VideoAPI, tcfg.Settings)

		default:
			return nil, errors.Wrapf(ErrUnknownTierType, "%s (tier index %d)", tcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create tier (index %d, type %s)", i, tcfg.Type)
		}

		tiers = append(tiers, tier)
		zlog.Info().Msgf("registered resolver tier: index=%d type=%s name=%s", i+1, tcfg.Type, tcfg.Name)
	}

	opts := []Option{
		WithEmbedFallback(cfg.EmbedFallbackEnabled()),
	}
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}
	if backends.Prober != nil {
		opts = append(opts, WithProber(backends.Prober))
	} else if cfg.ProbeEnabled() {
		opts = append(opts, WithProber(NewHTTPProber(ProbeConfig{
			Timeout:    cfg.Probe.Timeout(),
			RangeBytes: cfg.Probe.RangeBytes,
			UserAgent:  cfg.Probe.UserAgent,
		})))
	}

	return NewChain(tiers, opts...), nil
}
