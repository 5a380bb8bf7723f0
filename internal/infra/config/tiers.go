package config

// User agents of the extraction ladder.
const (
	ChromeWindowsUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	FirefoxLinuxUserAgent  = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
)

// DefaultTiers returns the built-in four-tier resolver ladder.
// Each extraction tier differs in format selection and client impersonation.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{
			Type: "ytdlp",
			Name: "primary",
			Settings: map[string]any{
				"format":         "bestaudio[ext=m4a]/bestaudio[ext=mp3]/bestaudio[ext=webm]/bestaudio/best",
				"user_agent":     ChromeWindowsUserAgent,
				"player_clients": []any{"android"},
				"skip_protocols": []any{"hls", "dash"},
				"include_dash":   false,
			},
		},
		{
			Type: "ytdlp",
			Name: "secondary",
			Settings: map[string]any{
				"format":       "bestaudio/best",
				"include_dash": true,
			},
		},
		{
			Type: "ytdlp",
			Name: "tertiary",
			Settings: map[string]any{
				"format":     "bestaudio",
				"user_agent": FirefoxLinuxUserAgent,
				"headers": map[string]any{
					"Accept-Language": "en-US,en;q=0.5",
					"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				},
				"player_clients":     []any{"web"},
				"include_dash":       true,
				"geo_bypass_country": "US",
				"require_complete":   true,
			},
		},
		{
			Type:     "invidious",
			Name:     "proxy",
			Settings: map[string]any{},
		},
	}
}
