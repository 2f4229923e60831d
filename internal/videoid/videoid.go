// Package videoid turns user supplied video page links into canonical video
// identifiers.
package videoid

import (
	"net/url"
	"regexp"
	"strings"
)

// ID is the canonical key of a single video.
type ID string

const (
	shortHost     = "youtu.be"
	canonicalHost = "youtube.com"
	watchPath     = "/watch"
	shortsPrefix  = "/shorts/"
)

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// Extract returns the video identifier referenced by link.
// The second return value is false when the link is not a URL or does not
// match any supported shape.
func Extract(link string) (ID, bool) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case host == shortHost:
		return nonEmpty(firstSegment(u.Path))
	case isCanonicalHost(host):
		if u.Path == watchPath {
			return nonEmpty(u.Query().Get("v"))
		}
		if strings.HasPrefix(u.Path, shortsPrefix) {
			parts := strings.Split(u.Path, "/")
			return nonEmpty(parts[2])
		}
	}

	return "", false
}

// Valid reports whether id has the shape of a YouTube video identifier.
func Valid(id ID) bool {
	return validID.MatchString(string(id))
}

// SplitLinks splits a newline delimited batch into trimmed, non-blank links.
func SplitLinks(text string) []string {
	var links []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			links = append(links, line)
		}
	}
	return links
}

func isCanonicalHost(host string) bool {
	return host == canonicalHost || strings.HasSuffix(host, "."+canonicalHost)
}

func firstSegment(path string) string {
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	return segment
}

func nonEmpty(s string) (ID, bool) {
	if s == "" {
		return "", false
	}
	return ID(s), true
}

// WatchURL returns the canonical watch page of id.
func (id ID) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(string(id))
}
