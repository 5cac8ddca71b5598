package alexa

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// EndpointID derives the protocol endpoint identifier for a device of the
// given family from its source-system ID.
//
// The raw form is "family:sourceID". Characters outside the allowed set
// [A-Za-z0-9_-=#;:?@&] become "_" and the result is capped at 256 chars.
// When the raw form had to be altered, "#" and the first 8 hex digits of its
// SHA-256 are appended so that two source IDs differing only in replaced
// characters (or beyond the cap) still map to different endpoints.
//
// The result depends only on its inputs, so it is stable across restarts.
func EndpointID(family, sourceID string) string {
	raw := family + ":" + sourceID

	var b strings.Builder
	b.Grow(len(raw))
	altered := false
	for _, r := range raw {
		if allowedEndpointRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
		altered = true
	}
	id := b.String()

	if len(id) > MaxEndpointIDLen {
		altered = true
	}
	if !altered {
		return id
	}

	sum := sha256.Sum256([]byte(raw))
	suffix := "#" + hex.EncodeToString(sum[:4])
	if len(id) > MaxEndpointIDLen-len(suffix) {
		id = id[:MaxEndpointIDLen-len(suffix)]
	}
	return id + suffix
}

func allowedEndpointRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("_-=#;:?@&", r)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
