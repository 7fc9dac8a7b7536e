package registry

import (
	"bytes"
	"strings"
)

// minBodyBytes: real register pages are far larger; anything shorter is a
// stub served by the edge protection.
const minBodyBytes = 500

var blockMarkers = []string{
	"request rejected",
	"captcha",
	"too many requests",
	"rate limit",
	"access denied",
}

// IsBlockedBody reports whether a response body looks like a block page
// rather than register content.
func IsBlockedBody(body []byte) bool {
	if len(body) < minBodyBytes {
		return true
	}
	lower := strings.ToLower(string(body[:min(len(body), 4096)]))
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// looksLikeHTML is a cheap sniff used before parsing.
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return bytes.HasPrefix(trimmed, []byte("<"))
}
