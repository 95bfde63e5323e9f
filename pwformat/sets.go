package pwformat

import (
	"strings"

	"github.com/safing/pwgen/charset"
)

var staticSets = map[rune]string{
	'a': charset.Lower + charset.Digits,
	'A': charset.Upper + charset.Lower + charset.Digits,
	'U': charset.Upper + charset.Digits,
	'd': charset.Digits,
	'h': charset.HexLower,
	'H': charset.HexUpper,
	'l': charset.Lower,
	'L': charset.Upper + charset.Lower,
	'u': charset.Upper,
	'v': charset.Vowels,
	'V': charset.Vowels + strings.ToUpper(charset.Vowels),
	'Z': strings.ToUpper(charset.Vowels),
	'c': charset.Consonants,
	'C': charset.Consonants + strings.ToUpper(charset.Consonants),
	'z': strings.ToUpper(charset.Consonants),
	'p': charset.Punctuation,
	'b': charset.Brackets,
}

// specifiers that are not backed by a static set
const dynamicSpecifiers = "xsSyEqQrPwW"

func isSpecifier(r rune) bool {
	_, ok := staticSets[r]
	return ok || strings.ContainsRune(dynamicSpecifiers, r)
}

// setFor returns the characters of a set specifier. It returns nil for
// specifiers that are not character sets.
func (env *Env) setFor(spec rune) []rune {
	if s, ok := staticSets[spec]; ok {
		return []rune(s)
	}
	switch spec {
	case 'x':
		if env.CustomSet == nil || env.CustomSet.Type.IsPhonetic() {
			return nil
		}
		return env.CustomSet.Chars
	case 's':
		return []rune(env.symbols())
	case 'S':
		return []rune(staticSets['A'] + env.symbols())
	case 'y':
		return []rune(charset.HighANSI())
	case 'E':
		return []rune(strings.Map(func(r rune) rune {
			if strings.ContainsRune(env.ambiguous(), r) {
				return -1
			}
			return r
		}, staticSets['A']))
	}
	return nil
}

func (env *Env) symbols() string {
	if env.Symbols == "" {
		return charset.DefaultSymbols
	}
	return env.Symbols
}

func (env *Env) ambiguous() string {
	if env.Ambiguous == "" {
		return charset.DefaultAmbiguous
	}
	return env.Ambiguous
}
