package tracking

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// NormalizeURL reduces a property URL to its identity: trimmed, lowercased,
// tracking parameters and fragment removed, without trailing slashes.
// NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func NormalizeURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))

	if i := strings.Index(u, "#"); i >= 0 {
		u = u[:i]
	}

	query := ""
	if i := strings.Index(u, "?"); i >= 0 {
		u, query = u[:i], u[i+1:]
	}

	u = strings.TrimRight(u, "/")
	for {
		next := strings.TrimRight(stripTrackingParams(query), "/")
		if next == query {
			break
		}
		query = next
	}
	if query != "" {
		u += "?" + query
	}
	return u
}

// HashURL returns the hex MD5 of an already normalized URL.
func HashURL(normalized string) string {
	sum := md5.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Identity normalizes raw and returns the normalized URL and its hash.
func Identity(raw string) (string, string) {
	normalized := NormalizeURL(raw)
	return normalized, HashURL(normalized)
}

func stripTrackingParams(query string) string {
	if query == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(query, "&") {
		if pair == "" || isTrackingParam(pair) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

func isTrackingParam(pair string) bool {
	key := pair
	if i := strings.Index(pair, "="); i >= 0 {
		key = pair[:i]
	}
	return strings.HasPrefix(key, "utm_") || key == "ref" || key == "source"
}
