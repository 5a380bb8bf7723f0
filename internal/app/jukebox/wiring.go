package jukebox

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/app/playback"
	"github.com/osa030/tubejuke/internal/app/queue"
	"github.com/osa030/tubejuke/internal/app/resolver"
	"github.com/osa030/tubejuke/internal/infra/config"
	"github.com/osa030/tubejuke/internal/infra/mpd"
	"github.com/osa030/tubejuke/internal/infra/procplayer"
)

// Metrics combines the recorder with the resolver tier observer.
type Metrics interface {
	Recorder
	resolver.Observer
}

// NewFromConfig builds the service and every collaborator from configuration.
// metrics may be nil.
func NewFromConfig(cfg *config.Config, metrics Metrics) (*Service, error) {
	var tierObserver resolver.Observer
	var recorder Recorder
	if metrics != nil {
		tierObserver = metrics
		recorder = metrics
	}

	chain, err := resolver.NewChainFromConfig(&cfg.Resolver, resolver.Backends{}, tierObserver)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resolver chain")
	}

	engine, err := NewEngine(cfg.Player)
	if err != nil {
		return nil, err
	}

	player := playback.NewPlayer(engine, LoadOptions(cfg.Player))
	return New(queue.NewStore(cfg.Queue.HistorySize), chain, player, PlaybackConfig(cfg.Playback), recorder), nil
}

// NewEngine creates the configured player engine.
func NewEngine(cfg config.PlayerConfig) (playback.Engine, error) {
	var (
		engine playback.Engine
		err    error
	)
	switch cfg.Engine {
	case "process", "":
		engine, err = procplayer.New(cfg.Settings)
	case "mpd":
		engine, err = mpd.New(cfg.Settings)
	default:
		return nil, errors.Newf("unknown player engine: %s", cfg.Engine)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s engine", cfg.Engine)
	}
	zlog.Info().Msgf("jukebox: player engine: %s", cfg.Engine)
	return engine, nil
}

// LoadOptions maps player configuration to per-item load options.
func LoadOptions(cfg config.PlayerConfig) playback.LoadOptions {
	return playback.LoadOptions{
		NetworkCachingMs: cfg.NetworkCachingMs,
		FileCachingMs:    cfg.FileCachingMs,
		NoVideo:          true,
		Normalize:        cfg.NormalizeEnabled(),
		Volume:           cfg.Volume,
	}
}

// PlaybackConfig maps playback configuration to coordinator settings.
func PlaybackConfig(cfg config.PlaybackConfig) playback.Config {
	return playback.Config{
		DefaultDuration: cfg.DefaultDuration(),
		PollInterval:    cfg.PollInterval(),
		IdleInterval:    cfg.IdleInterval(),
		Settle:          cfg.Settle(),
		RetrySettle:     cfg.RetrySettle(),
		EventBufferSize: cfg.EventBufferSize,
	}
}
