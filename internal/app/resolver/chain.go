package resolver

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubejuke/internal/domain/track"
)

// maxReasonLength bounds the failure reason embedded in sentinel titles.
const maxReasonLength = 50

// EmbedTierName is reported for the last-resort embed page fallback.
const EmbedTierName = "embed"

// Chain tries tiers in order until one produces a valid result.
type Chain struct {
	tiers         []Tier
	prober        Prober
	embedFallback bool
	observer      Observer
}

// Option configures a Chain.
type Option func(*Chain)

// WithProber enables the reachability probe for stream URLs.
func WithProber(p Prober) Option {
	return func(c *Chain) { c.prober = p }
}

// WithEmbedFallback enables the embed page fallback in stream mode.
func WithEmbedFallback(enabled bool) Option {
	return func(c *Chain) { c.embedFallback = enabled }
}

// WithObserver reports per-tier outcomes.
func WithObserver(o Observer) Option {
	return func(c *Chain) { c.observer = o }
}

// NewChain creates a new resolver chain.
func NewChain(tiers []Tier, opts ...Option) *Chain {
	c := &Chain{tiers: tiers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tiers returns the tiers in the order they are tried.
func (c *Chain) Tiers() []Tier {
	return c.tiers
}

// ResolveMetadata resolves display metadata for a reference.
// It never fails: when every tier fails it returns a sentinel record instead.
func (c *Chain) ResolveMetadata(ctx context.Context, reference string) (meta track.Metadata) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("resolver: metadata resolution crashed: reference=%s panic=%v", reference, r)
			meta = errorMetadata(fmt.Sprintf("%v", r))
		}
	}()

	var lastErr error
	for i, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return errorMetadata(err.Error())
		}

		zlog.Debug().Msgf("resolver: trying tier: index=%d total=%d tier=%s mode=%s",
			i+1, len(c.tiers), tier.Name(), ModeMetadata)

		s, err := c.attempt(ctx, tier, reference, ModeMetadata)
		if err != nil {
			lastErr = err
			c.observe(ModeMetadata, tier.Name(), OutcomeFailure)
			zlog.Warn().Msgf("resolver: tier failed, trying next: tier=%s mode=%s reference=%s error=%v",
				tier.Name(), ModeMetadata, reference, err)
			continue
		}

		c.observe(ModeMetadata, tier.Name(), OutcomeSuccess)
		zlog.Info().Msgf("resolver: metadata resolved: tier=%s id=%s title=%q duration=%d",
			tier.Name(), s.ID, s.Title, s.DurationSeconds)
		return track.Metadata{
			ID:              s.ID,
			Title:           s.Title,
			Thumbnail:       s.Thumbnail,
			DurationSeconds: s.DurationSeconds,
			Tier:            tier.Name(),
		}
	}

	if err := ctx.Err(); err != nil {
		return errorMetadata(err.Error())
	}
	if lastErr == nil {
		lastErr = errors.New("no tiers configured")
	}
	zlog.Warn().Msgf("resolver: all tiers failed, using placeholder: reference=%s", reference)
	return unknownMetadata(reference, lastErr.Error())
}

// ResolveStream resolves a fresh, directly playable stream URL for a reference.
func (c *Chain) ResolveStream(ctx context.Context, reference string) (*Resolution, error) {
	var lastErr error
	for i, tier := range c.tiers {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "stream resolution cancelled")
		}

		zlog.Debug().Msgf("resolver: trying tier: index=%d total=%d tier=%s mode=%s",
			i+1, len(c.tiers), tier.Name(), ModeStream)

		s, err := c.attempt(ctx, tier, reference, ModeStream)
		if err != nil {
			lastErr = err
			c.observe(ModeStream, tier.Name(), OutcomeFailure)
			zlog.Warn().Msgf("resolver: tier failed, trying next: tier=%s mode=%s reference=%s error=%v",
				tier.Name(), ModeStream, reference, err)
			continue
		}

		if err := c.validate(ctx, s.URL); err != nil {
			lastErr = err
			c.observe(ModeStream, tier.Name(), OutcomeRejected)
			zlog.Warn().Msgf("resolver: tier result rejected, trying next: tier=%s reference=%s url=%s error=%v",
				tier.Name(), reference, s.URL, err)
			continue
		}

		c.observe(ModeStream, tier.Name(), OutcomeSuccess)
		zlog.Info().Msgf("resolver: stream resolved: tier=%s reference=%s", tier.Name(), reference)
		return &Resolution{URL: s.URL, Tier: tier.Name(), Stream: s}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "stream resolution cancelled")
	}
	if lastErr == nil {
		lastErr = errors.New("no tiers configured")
	}

	if c.embedFallback {
		if res, ok := c.embed(ctx, reference); ok {
			return res, nil
		}
	}

	return nil, errors.Wrapf(ErrUnresolvable, "%s: last error: %v", reference, lastErr)
}

// embed builds the last-resort embed page URL. It rarely plays; it is kept as a best-effort attempt.
func (c *Chain) embed(ctx context.Context, reference string) (*Resolution, bool) {
	videoID := ExtractVideoID(reference)
	if videoID == "" {
		zlog.Warn().Msgf("resolver: embed fallback skipped, no video ID: reference=%s", reference)
		return nil, false
	}

	embedURL := EmbedURL(videoID)
	if c.prober != nil {
		if err := c.prober.Probe(ctx, embedURL); err != nil {
			zlog.Warn().Msgf("resolver: embed fallback unreachable: url=%s error=%v", embedURL, err)
			return nil, false
		}
	}

	c.observe(ModeStream, EmbedTierName, OutcomeDegraded)
	zlog.Warn().Msgf("resolver: all tiers failed, handing embed page to player: url=%s", embedURL)
	return &Resolution{URL: embedURL, Tier: EmbedTierName, Degraded: true}, true
}

// attempt runs one tier, converting a panic into an error.
func (c *Chain) attempt(ctx context.Context, tier Tier, reference string, mode Mode) (s *Stream, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrTierPanicked, "%s: %v", tier.Name(), r)
		}
	}()

	s, err = tier.Resolve(ctx, reference, mode)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.Newf("tier %s returned no result", tier.Name())
	}
	return s, nil
}

// validate applies the stream-validity checks to a candidate URL.
func (c *Chain) validate(ctx context.Context, streamURL string) error {
	if streamURL == "" {
		return ErrNoStreamURL
	}
	if !IsPlayableURL(streamURL) {
		return ErrNotAudio
	}
	if c.prober != nil {
		if err := c.prober.Probe(ctx, streamURL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) observe(mode Mode, tier, outcome string) {
	if c.observer != nil {
		c.observer.ObserveTier(mode.String(), tier, outcome)
	}
}

// unknownMetadata is the placeholder used when every tier failed.
func unknownMetadata(reference, reason string) track.Metadata {
	return track.Metadata{
		ID:    track.IDUnknown,
		Title: fmt.Sprintf("Unknown Title (URL: %s): %s", reference, truncate(reason, maxReasonLength)),
	}
}

// errorMetadata is the placeholder used when resolution was aborted.
func errorMetadata(reason string) track.Metadata {
	return track.Metadata{
		ID:    track.IDError,
		Title: fmt.Sprintf("Error: %s...", truncate(reason, maxReasonLength)),
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
