// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are query parameters stripped during canonicalization.
// They identify campaigns, not content (prd004 R3.2).
var trackingParams = map[string]bool{
	"fbclid":       true,
	"gclid":        true,
	"igshid":       true,
	"mc_cid":       true,
	"mc_eid":       true,
	"ref":          true,
	"si":           true,
	"feature":      true,
	"app":          true,
	"pp":           true,
	"ab_channel":   true,
	"spm":          true,
	"share_source": true,
}

// CanonicalURL normalizes a URL for identity comparison: https scheme,
// lowercase host without a www prefix, no trailing slash, no fragment,
// tracking parameters stripped, remaining parameters sorted (prd004 R3.1).
// Unparseable input is returned trimmed so dedupe still sees a stable key.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = "https"
	u.Fragment = ""
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = sortedEncode(q)

	return u.String()
}

// sortedEncode renders query params in sorted order so parameter order
// never splits identity.
func sortedEncode(q url.Values) string {
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
