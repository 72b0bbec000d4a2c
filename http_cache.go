package wapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CacheDirectives holds the Cache-Control directives that affect freshness.
type CacheDirectives struct {
	NoStore        bool
	NoCache        bool
	MaxAge         *time.Duration
	MustRevalidate bool
	Public         bool
	Private        bool
}

// parseCacheControl parses a Cache-Control header value.
func parseCacheControl(header string) *CacheDirectives {
	directives := &CacheDirectives{}
	if header == "" {
		return directives
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}

		if key, value, ok := strings.Cut(part, "="); ok {
			key = strings.TrimSpace(key)
			value = strings.Trim(strings.TrimSpace(value), "\"")
			if key == "max-age" {
				if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
					maxAge := time.Duration(seconds) * time.Second
					directives.MaxAge = &maxAge
				}
			}
			continue
		}

		switch part {
		case "no-store":
			directives.NoStore = true
		case "no-cache":
			directives.NoCache = true
		case "must-revalidate":
			directives.MustRevalidate = true
		case "public":
			directives.Public = true
		case "private":
			directives.Private = true
		}
	}

	return directives
}

// parseExpires parses an Expires header in any of the HTTP date formats.
func parseExpires(header string) *time.Time {
	if header == "" {
		return nil
	}

	for _, layout := range []string{time.RFC1123, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, header); err == nil {
			return &t
		}
	}

	return nil
}

// responseExpiry returns the freshness limit advertised by the headers.
// max-age wins over Expires; no-store and no-cache mean no freshness at all.
func responseExpiry(header http.Header, receivedAt time.Time) (time.Time, bool) {
	cacheControl := parseCacheControl(header.Get("Cache-Control"))

	if cacheControl.NoStore || cacheControl.NoCache {
		return time.Time{}, false
	}

	if cacheControl.MaxAge != nil {
		return receivedAt.Add(*cacheControl.MaxAge), true
	}

	if expires := parseExpires(header.Get("Expires")); expires != nil {
		return *expires, true
	}

	return time.Time{}, false
}
