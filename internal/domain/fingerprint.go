package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Tracking query parameters stripped during URL normalization
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"mc_cid":   true,
	"mc_eid":   true,
	"ref":      true,
	"ref_src":  true,
	"referrer": true,
	"source":   true,
}

// NormalizeURL canonicalizes a URL so syndicated copies of the same link
// fingerprint identically: lowercase scheme/host, no fragment, no tracking
// params, no trailing slash. Unparseable input is returned trimmed as-is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
		}
	}
	// Re-encode with sorted keys so param order never changes the fingerprint
	u.RawQuery = encodeSorted(q)

	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// NormalizeText lowercases and collapses all whitespace runs to single spaces.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint derives the content-addressed identity used for exact-duplicate
// detection. Pure function: identical content always yields the identical hash.
func Fingerprint(rawURL, text string) string {
	h := sha256.New()
	h.Write([]byte(NormalizeURL(rawURL)))
	h.Write([]byte{'\n'})
	h.Write([]byte(NormalizeText(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// TokenSet splits normalized text into its unique tokens, used by the
// fuzzy-duplicate path.
func TokenSet(text string) map[string]struct{} {
	fields := strings.Fields(NormalizeText(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}
