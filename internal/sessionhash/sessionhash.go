// Package sessionhash derives a stable 32-bit fingerprint from an ordered
// tab list. The algorithm must stay bit-exact: stored session hashes are
// compared for reconciliation across process restarts (see SPEC_FULL.md
// §4.2).
package sessionhash

import (
	"unicode/utf16"

	"github.com/spacekeeper/spacekeeperd/internal/model"
	"github.com/spacekeeper/spacekeeperd/internal/urlnorm"
)

// Hash concatenates the cleaned URL of every tab, in order, and folds the
// resulting UTF-16 code-unit sequence with the classic djb2-variant
// recurrence h <- ((h << 5) - h) + c, truncating to a signed 32-bit
// two's-complement register after every step. The absolute value of the
// final register is returned; empty input hashes to 0.
func Hash(tabs []model.Tab, extensionID string) uint32 {
	var b []byte
	for _, t := range tabs {
		b = append(b, urlnorm.Clean(t.URL, extensionID)...)
	}
	return HashString(string(b))
}

// HashString runs the same fold directly over a string, useful for tests and
// for callers that have already assembled the concatenated cleaned URLs.
func HashString(s string) uint32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	if h < 0 {
		h = -h
	}
	return uint32(h)
}
