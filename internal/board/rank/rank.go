// Package rank implements fractional rank keys.
//
// A key is a non-empty string over 0-9a-z that never ends in '0'. Keys
// compare lexicographically and, read as base-36 fractions, there is
// always another key strictly between two distinct keys. Moving an item
// therefore only rewrites that item's key.
package rank

import (
	"errors"
	"fmt"
	"strings"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	base     = len(alphabet)

	// MaxLength is the key length past which a sequence should be rebalanced.
	MaxLength = 24
)

var (
	// ErrNoSpace is returned when lo is not strictly below hi.
	ErrNoSpace = errors.New("rank: no space between keys")
	// ErrInvalidKey is returned for keys outside the alphabet or ending in '0'.
	ErrInvalidKey = errors.New("rank: invalid key")
)

// Between returns a key strictly between lo and hi. An empty lo means the
// start of the sequence, an empty hi the end.
func Between(lo, hi string) (string, error) {
	if err := validate(lo); err != nil {
		return "", err
	}
	if err := validate(hi); err != nil {
		return "", err
	}
	if hi != "" && lo >= hi {
		return "", fmt.Errorf("%w: %q >= %q", ErrNoSpace, lo, hi)
	}
	return midpoint(lo, hi), nil
}

// After returns a key greater than k.
func After(k string) (string, error) { return Between(k, "") }

// Before returns a key smaller than k.
func Before(k string) (string, error) { return Between("", k) }

// TooLong reports whether a key has grown enough to warrant a rebalance.
func TooLong(k string) bool { return len(k) > MaxLength }

// Initial returns n evenly spaced, increasing keys.
func Initial(n int) []string {
	if n <= 0 {
		return nil
	}
	width := 1
	space := int64(base)
	for space <= int64(n)+1 {
		width++
		space *= int64(base)
	}
	step := space / int64(n+1)

	keys := make([]string, n)
	buf := make([]byte, width)
	for i := 0; i < n; i++ {
		v := step * int64(i+1)
		for p := width - 1; p >= 0; p-- {
			buf[p] = alphabet[v%int64(base)]
			v /= int64(base)
		}
		keys[i] = strings.TrimRight(string(buf), "0")
	}
	return keys
}

// Valid reports whether k is a well-formed key.
func Valid(k string) bool {
	return k != "" && validate(k) == nil
}

func validate(k string) error {
	if strings.HasSuffix(k, "0") {
		return fmt.Errorf("%w: %q has a trailing zero", ErrInvalidKey, k)
	}
	for i := 0; i < len(k); i++ {
		if digit(k[i]) < 0 {
			return fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
	}
	return nil
}

// midpoint assumes lo < hi (or hi empty) and both keys valid.
func midpoint(lo, hi string) string {
	if hi != "" {
		n := 0
		for n < len(hi) && digitAt(lo, n) == digit(hi[n]) {
			n++
		}
		if n > 0 {
			return hi[:n] + midpoint(tail(lo, n), hi[n:])
		}
	}

	dlo := digitAt(lo, 0)
	dhi := base
	if hi != "" {
		dhi = digit(hi[0])
	}
	if dhi-dlo > 1 {
		return string(alphabet[(dlo+dhi)/2])
	}
	// Adjacent leading digits.
	if len(hi) > 1 {
		return hi[:1]
	}
	return string(alphabet[dlo]) + midpoint(tail(lo, 1), "")
}

func digit(c byte) int {
	return strings.IndexByte(alphabet, c)
}

func digitAt(k string, i int) int {
	if i >= len(k) {
		return 0
	}
	return digit(k[i])
}

func tail(k string, n int) string {
	if n >= len(k) {
		return ""
	}
	return k[n:]
}
