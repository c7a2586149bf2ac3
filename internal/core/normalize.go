package core

import (
	"strings"
	"unicode"
)

// NormalizeDescription returns the canonical key used for category memory.
//
// Trailing installment markers such as "2/12" are stripped and surrounding
// whitespace is removed, so "Netflix 2/12" and "Netflix 3/12" share the key
// "Netflix". Every trailing marker goes ("Shop 1/3 2/3" becomes "Shop"),
// which keeps the function idempotent. The scan runs once from the right.
func NormalizeDescription(d string) string {
	out := strings.TrimSpace(d)
	for {
		cut, ok := installmentStart(out)
		if !ok {
			return out
		}
		out = strings.TrimRightFunc(out[:cut], unicode.IsSpace)
	}
}

// installmentStart reports where a trailing "<digits>/<digits>" marker
// begins in s, taking the longest digit run before the slash.
func installmentStart(s string) (int, bool) {
	i := len(s)
	for i > 0 && isDigit(s[i-1]) {
		i--
	}
	if i == len(s) || i == 0 || s[i-1] != '/' {
		return 0, false
	}
	i--
	j := i
	for j > 0 && isDigit(s[j-1]) {
		j--
	}
	if j == i {
		return 0, false
	}
	return j, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
