package resolver

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ExtractVideoID parses a content identifier out of a reference.
// It understands watch?v=, youtu.be/, /shorts/, /embed/, /live/ and /v/ forms,
// and otherwise falls back to the last path segment. Returns "" if nothing usable is found.
func ExtractVideoID(reference string) string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ""
	}

	u, err := url.Parse(reference)
	if err != nil {
		return ""
	}

	if v := u.Query().Get("v"); v != "" {
		return validVideoID(v)
	}

	segments := make([]string, 0)
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "youtu.be" || strings.HasSuffix(host, ".youtu.be") {
		return validVideoID(segments[0])
	}

	for i, s := range segments[:len(segments)-1] {
		switch s {
		case "shorts", "embed", "live", "v":
			return validVideoID(segments[i+1])
		}
	}

	return validVideoID(segments[len(segments)-1])
}

// EmbedURL returns the embeddable page URL for a video ID.
func EmbedURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=1&controls=0", url.PathEscape(videoID))
}

func validVideoID(id string) string {
	if videoIDPattern.MatchString(id) {
		return id
	}
	return ""
}
