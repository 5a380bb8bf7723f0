package resolver

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubejuke/internal/infra/config"
	"github.com/osa030/tubejuke/internal/infra/invidious"
	"github.com/osa030/tubejuke/internal/infra/ytdlp"
)

// Mock extractor for testing
type mockExtractor struct {
	info    *ytdlp.Info
	err     error
	options []ytdlp.Options
}

func (m *mockExtractor) Extract(ctx context.Context, reference string, opts ytdlp.Options) (*ytdlp.Info, error) {
	m.options = append(m.options, opts)
	if m.err != nil {
		return nil, m.err
	}
	return m.info, nil
}

// Mock video API for testing
type mockVideoAPI struct {
	video     *invidious.Video
	err       error
	requested []string
}

func (m *mockVideoAPI) GetVideo(ctx context.Context, videoID string) (*invidious.Video, error) {
	m.requested = append(m.requested, videoID)
	if m.err != nil {
		return nil, m.err
	}
	return m.video, nil
}

func TestExtractorTier_DefaultLadderOptions(t *testing.T) {
	extractor := &mockExtractor{err: errors.New("blocked")}
	chain, err := NewChainFromConfig(&config.ResolverConfig{Tiers: config.DefaultTiers()},
		Backends{Extractor: extractor, VideoAPI: &mockVideoAPI{err: errors.New("down")}}, nil)
	require.NoError(t, err)

	meta := chain.ResolveMetadata(context.Background(), "https://www.youtube.com/watch?v=abc")
	assert.Equal(t, "unknown", meta.ID)

	require.Len(t, extractor.options, 3)
	primary, secondary, tertiary := extractor.options[0], extractor.options[1], extractor.options[2]

	assert.Equal(t, "bestaudio[ext=m4a]/bestaudio[ext=mp3]/bestaudio[ext=webm]/bestaudio/best", primary.Format)
	assert.Contains(t, primary.UserAgent, "Chrome/123")
	assert.Equal(t, []string{"android"}, primary.PlayerClients)
	assert.Equal(t, []string{"hls", "dash"}, primary.SkipProtocols)
	assert.False(t, primary.IncludeDASH)

	assert.Equal(t, "bestaudio/best", secondary.Format)
	assert.True(t, secondary.IncludeDASH)
	assert.Empty(t, secondary.UserAgent)

	assert.Equal(t, "bestaudio", tertiary.Format)
	assert.Contains(t, tertiary.UserAgent, "Firefox/115")
	assert.Equal(t, "en-US,en;q=0.5", tertiary.Headers["Accept-Language"])
	assert.Equal(t, []string{"web"}, tertiary.PlayerClients)
	assert.Empty(t, tertiary.SkipProtocols)
	assert.Equal(t, "US", tertiary.GeoBypassCountry)

	// Every tier runs with a distinct option set
	assert.NotEqual(t, primary, secondary)
	assert.NotEqual(t, secondary, tertiary)
}

func TestExtractorTier_Resolve(t *testing.T) {
	info := &ytdlp.Info{
		ID:        "abc",
		Title:     "Song",
		Thumbnail: "https://img",
		Duration:  212.7,
		Formats: []ytdlp.Format{
			{URL: "https://audio/low", ACodec: "opus", VCodec: "none", ABR: 50},
			{URL: "https://audio/high", ACodec: "mp4a", VCodec: "none", ABR: 128},
		},
	}
	tier, err := NewExtractorTier("primary", &mockExtractor{info: info}, nil)
	require.NoError(t, err)

	s, err := tier.Resolve(context.Background(), "https://youtu.be/abc", ModeMetadata)
	require.NoError(t, err)
	assert.Equal(t, &Stream{ID: "abc", Title: "Song", Thumbnail: "https://img", DurationSeconds: 212}, s)

	s, err = tier.Resolve(context.Background(), "https://youtu.be/abc", ModeStream)
	require.NoError(t, err)
	assert.Equal(t, "https://audio/high", s.URL)
}

func TestExtractorTier_NoStreamURL(t *testing.T) {
	tier, err := NewExtractorTier("primary", &mockExtractor{info: &ytdlp.Info{ID: "abc", Title: "Song"}}, nil)
	require.NoError(t, err)

	_, err = tier.Resolve(context.Background(), "ref", ModeStream)
	assert.ErrorIs(t, err, ErrNoStreamURL)
}

func TestExtractorTier_RequireComplete(t *testing.T) {
	extractor := &mockExtractor{info: &ytdlp.Info{ID: "abc"}}

	lenient, err := NewExtractorTier("secondary", extractor, nil)
	require.NoError(t, err)
	s, err := lenient.Resolve(context.Background(), "https://youtu.be/abc", ModeMetadata)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/abc", s.Title)

	strict, err := NewExtractorTier("tertiary", extractor, map[string]any{"require_complete": true})
	require.NoError(t, err)
	_, err = strict.Resolve(context.Background(), "https://youtu.be/abc", ModeMetadata)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestNewExtractorTier_InvalidSettings(t *testing.T) {
	_, err := NewExtractorTier("x", &mockExtractor{}, map[string]any{"skip_protocols": []any{"rtmp"}})
	assert.Error(t, err)

	_, err = NewExtractorTier("x", &mockExtractor{}, map[string]any{"geo_bypass_country": "USA"})
	assert.Error(t, err)

	_, err = NewExtractorTier("x", &mockExtractor{}, map[string]any{"format": 12})
	assert.Error(t, err)
}

func TestProxyTier_Resolve(t *testing.T) {
	api := &mockVideoAPI{video: &invidious.Video{
		VideoID:       "dQw4w9WgXcQ",
		Title:         "Proxy Song",
		LengthSeconds: 213,
		ThumbnailURL:  "https://img",
		AdaptiveFormats: []invidious.Format{
			{URL: "https://video", Type: "video/mp4", Bitrate: "900000"},
			{URL: "https://audio/low", Type: "audio/webm", Bitrate: "50000"},
			{URL: "https://audio/high", Type: "audio/mp4", Bitrate: "130000"},
		},
	}}
	tier, err := NewProxyTier("proxy", api, nil)
	require.NoError(t, err)

	s, err := tier.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", ModeMetadata)
	require.NoError(t, err)
	assert.Equal(t, &Stream{ID: "dQw4w9WgXcQ", Title: "Proxy Song", Thumbnail: "https://img", DurationSeconds: 213}, s)
	assert.Equal(t, []string{"dQw4w9WgXcQ"}, api.requested)

	s, err = tier.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ", ModeStream)
	require.NoError(t, err)
	assert.Equal(t, "https://audio/high", s.URL)
}

func TestProxyTier_Failures(t *testing.T) {
	tier, err := NewProxyTier("proxy", &mockVideoAPI{video: &invidious.Video{Title: "No audio"}}, nil)
	require.NoError(t, err)

	_, err = tier.Resolve(context.Background(), "https://example.com/", ModeMetadata)
	assert.ErrorIs(t, err, ErrNoVideoID)

	_, err = tier.Resolve(context.Background(), "https://youtu.be/abc", ModeStream)
	assert.ErrorIs(t, err, ErrNoAudioFormat)

	strict, err := NewProxyTier("proxy", &mockVideoAPI{video: &invidious.Video{
		AdaptiveFormats: []invidious.Format{{URL: "https://audio", Type: "audio/mp4", Bitrate: "1000"}},
	}}, map[string]any{"min_bitrate": 64000})
	require.NoError(t, err)
	_, err = strict.Resolve(context.Background(), "https://youtu.be/abc", ModeStream)
	assert.ErrorIs(t, err, ErrNoAudioFormat)
}

func TestNewChainFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	chain, err := NewChainFromConfig(&cfg.Resolver, Backends{Extractor: &mockExtractor{}, VideoAPI: &mockVideoAPI{}}, nil)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, tier := range chain.Tiers() {
		names = append(names, tier.Name())
	}
	assert.Equal(t, []string{"primary", "secondary", "tertiary", "proxy"}, names)
	assert.True(t, chain.embedFallback)
	assert.NotNil(t, chain.prober)
}

func TestNewChainFromConfig_Errors(t *testing.T) {
	_, err := NewChainFromConfig(&config.ResolverConfig{}, Backends{}, nil)
	assert.Error(t, err)

	_, err = NewChainFromConfig(&config.ResolverConfig{Tiers: []config.TierConfig{{Type: "spotify", Name: "x"}}},
		Backends{Extractor: &mockExtractor{}}, nil)
	assert.ErrorIs(t, err, ErrUnknownTierType)

	_, err = NewChainFromConfig(&config.ResolverConfig{Tiers: []config.TierConfig{
		{Type: "ytdlp", Name: "x", Settings: map[string]any{"geo_bypass_country": "USA"}},
	}}, Backends{Extractor: &mockExtractor{}}, nil)
	assert.Error(t, err)
}
