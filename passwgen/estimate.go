package passwgen

import (
	"math"
	"unicode"

	"github.com/safing/pwgen/rng"
)

// Character pool sizes used by EstimateSecurity.
const (
	poolLower   = 26
	poolUpper   = 26
	poolDigits  = 10
	poolSymbols = 33
	poolOther   = 128
)

// EstimateSecurity estimates the entropy of a password that was not
// generated here, assuming it was drawn uniformly from the union of the
// character classes it contains. Passwords found in the common password
// list are capped accordingly.
func (g *Generator) EstimateSecurity(pw string) (bits int, common bool) {
	var lower, upper, digits, symbols, other bool
	n := 0
	for _, r := range pw {
		n++
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digits = true
		case r < unicode.MaxASCII && unicode.IsPrint(r):
			symbols = true
		default:
			other = true
		}
	}
	if n == 0 {
		return 0, false
	}

	pool := 0
	for _, class := range []struct {
		present bool
		size    int
	}{
		{lower, poolLower},
		{upper, poolUpper},
		{digits, poolDigits},
		{symbols, poolSymbols},
		{other, poolOther},
	} {
		if class.present {
			pool += class.size
		}
	}

	bits = int(math.Floor(math.Min(float64(n)*math.Log2(float64(pool)), rng.MaxEntropy)))
	src := g.snapshot()
	if src.isCommon(pw) {
		return min(bits, src.commonEntropy), true
	}
	return bits, false
}
