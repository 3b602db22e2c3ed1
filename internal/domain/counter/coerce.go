package counter

import (
	"strconv"
	"strings"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
)

// MaxValue is the largest count a counter can hold.
const MaxValue = 999999

// ParseLeadingInt reads an optionally signed integer prefix, so "12abc"
// yields 12. ok is false when no digits lead the string.
func ParseLeadingInt(s string) (n int, ok bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		// Overflow; saturate in the sign's direction.
		if s[0] == '-' {
			return -MaxValue - 1, true
		}
		return MaxValue + 1, true
	}
	return v, true
}

// ClampCount bounds n to [0, MaxValue].
func ClampCount(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxValue:
		return MaxValue
	default:
		return n
	}
}

// CoerceCount turns free-form input into a valid count. Non-numeric input is 0.
func CoerceCount(s string) int {
	n, _ := ParseLeadingInt(s)
	return ClampCount(n)
}

// CoerceInterval defaults non-numeric or non-positive input to 1.
func CoerceInterval(s string) int {
	return positiveOr(s, model.DefaultInterval)
}

// CoerceNumerator defaults non-numeric or non-positive input to 1.
func CoerceNumerator(s string) int {
	return positiveOr(s, model.DefaultNumerator)
}

// CoerceDenominator defaults non-numeric or non-positive input to 4096.
func CoerceDenominator(s string) int {
	return positiveOr(s, model.DefaultDenominator)
}

func positiveOr(s string, fallback int) int {
	n, ok := ParseLeadingInt(s)
	if !ok || n < 1 {
		return fallback
	}
	return n
}
