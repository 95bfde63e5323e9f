package charset

import (
	"github.com/armon/go-radix"
)

// Predefined character sets.
const (
	Upper       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Lower       = "abcdefghijklmnopqrstuvwxyz"
	Digits      = "0123456789"
	HexUpper    = Digits + "ABCDEF"
	HexLower    = Digits + "abcdef"
	Base64      = Upper + Lower + Digits + "+/"
	Brackets    = "()[]{}<>"
	Punctuation = ",.;:"
	Vowels      = "aeiou"
	Consonants  = "bcdfghjklmnpqrstvwxyz"

	// DefaultSymbols holds all printable ASCII characters that are neither
	// letters nor digits.
	DefaultSymbols = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	// DefaultAmbiguous holds characters that are easily confused.
	DefaultAmbiguous = "B8G6I1l|0OQDS5Z2"
)

// HighANSI returns the printable characters of the upper Latin-1 range.
func HighANSI() string {
	runes := make([]rune, 0, 0xff-0xa1)
	for r := rune(0xa1); r <= 0xff; r++ {
		if r == 0xad { // soft hyphen
			continue
		}
		runes = append(runes, r)
	}
	return string(runes)
}

// Type describes how a set is used for generation.
type Type uint8

// Set types.
const (
	Standard Type = iota
	PhoneticLower
	PhoneticUpper
	PhoneticMixed
)

// IsPhonetic reports whether the type selects trigram based generation.
func (t Type) IsPhonetic() bool {
	return t != Standard
}

func (t Type) String() string {
	switch t {
	case Standard:
		return "standard"
	case PhoneticLower:
		return "phonetic"
	case PhoneticUpper:
		return "phonetic upper-case"
	case PhoneticMixed:
		return "phonetic mixed-case"
	default:
		return "unknown"
	}
}

type placeholder struct {
	name    string
	setType Type
	// chars returns the characters of the class. Ambiguous characters are
	// removed by the caller if requested.
	chars func(opts *Options) string
}

func fixed(s string) func(*Options) string {
	return func(*Options) string { return s }
}

var placeholders = buildPlaceholders()

func buildPlaceholders() *radix.Tree {
	tree := radix.New()
	add := func(p *placeholder, names ...string) {
		for _, name := range names {
			// The closing bracket is part of the key so that the longest
			// prefix match never stops inside a name.
			tree.Insert(name+">", p)
		}
	}

	add(&placeholder{name: "AZ", chars: fixed(Upper)}, "AZ")
	add(&placeholder{name: "az", chars: fixed(Lower)}, "az")
	add(&placeholder{name: "09", chars: fixed(Digits)}, "09")
	add(&placeholder{name: "Hex", chars: fixed(HexUpper)}, "Hex")
	add(&placeholder{name: "hex", chars: fixed(HexLower)}, "hex")
	add(&placeholder{name: "base64", chars: fixed(Base64)}, "base64", "b64")
	add(&placeholder{name: "easytoread", chars: func(opts *Options) string {
		return removeChars(Upper+Lower+Digits, opts.ambiguous())
	}}, "easytoread", "etr")
	add(&placeholder{name: "symbols", chars: func(opts *Options) string {
		return opts.symbols()
	}}, "symbols", "sym")
	add(&placeholder{name: "brackets", chars: fixed(Brackets)}, "brackets", "brac")
	add(&placeholder{name: "punctuation", chars: fixed(Punctuation)}, "punctuation", "punct")
	add(&placeholder{name: "highansi", chars: func(*Options) string { return HighANSI() }}, "highansi", "high")
	add(&placeholder{name: "phonetic", setType: PhoneticLower, chars: fixed(Lower)}, "phonetic")
	add(&placeholder{name: "phoneticu", setType: PhoneticUpper, chars: fixed(Upper)}, "phoneticu")
	add(&placeholder{name: "phoneticx", setType: PhoneticMixed, chars: fixed(Upper + Lower)}, "phoneticx")

	return tree
}

// Placeholders returns the names of all placeholders, sorted.
func Placeholders() []string {
	names := make([]string, 0, placeholders.Len())
	placeholders.Walk(func(key string, _ interface{}) bool {
		names = append(names, "<"+key)
		return false
	})
	return names
}

// lookupPlaceholder matches a placeholder at the start of s, which must
// directly follow the opening bracket. It returns the placeholder and the
// number of bytes consumed, including the closing bracket.
func lookupPlaceholder(s string) (*placeholder, int, bool) {
	key, value, ok := placeholders.LongestPrefix(s)
	if !ok {
		return nil, 0, false
	}
	return value.(*placeholder), len(key), true //nolint:forcetypeassert
}
