package charset

import (
	"math"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec    string
		size    int
		classes int
		minLen  int
	}{
		{"<AZ><az><09>", 62, 3, 0},
		{"<AZ><az><09><symbols>", 94, 4, 0},
		{"<AZ>:2+<az><09>:3+<symbols>:1+", 94, 4, 6},
		{"<AZ>:1<az>:1+<09>:1+<symbols>:1<high>:1", 188, 5, 5},
		{"<easytoread>", 62 - len(DefaultAmbiguous) + 1, 1, 0}, // '|' is not alphanumeric
		{"<Hex>", 16, 1, 0},
		{"<hex><Hex>", 22, 2, 0},
		{"<b64>", 64, 1, 0},
		{"<base64><b64>", 64, 1, 0},
		{"abc", 3, 1, 0},
		{"abc:2", 3, 1, 2},
		{"ab:cd", 5, 1, 0},
		{"[my comment] <09>", 10, 1, 0},
		{"<brac><punct>", 12, 2, 0},
		{"äöü€", 4, 1, 0},
	}
	for _, test := range tests {
		set, err := Parse(test.spec, Options{})
		require.NoError(t, err, test.spec)
		assert.Equal(t, test.size, set.UniqueSize(), test.spec)
		assert.Len(t, set.Classes, test.classes, test.spec)
		assert.Equal(t, test.minLen, set.MinLength(), test.spec)
		assert.Equal(t, Standard, set.Type, test.spec)
		assert.InDelta(t, math.Log2(float64(test.size)), set.Entropy, 1e-9, test.spec)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	specs := []string{
		"",
		"a",
		"aaaa",
		"<foo>",
		"<AZ>:0",
		"<AZ>:1<AZ>:2",
		"<AZ>:1<AZ>:1+",
		"<phonetic><az>",
		"<az><phonetic>",
		"<phonetic>:3",
		"<phonetic><phoneticu>",
		"[only a comment]",
		"<09>:99999999999999999999",
	}
	for _, spec := range specs {
		set, err := Parse(spec, Options{})
		require.Error(t, err, spec)
		assert.ErrorIs(t, err, ErrInvalid, spec)
		assert.Nil(t, set, spec)
	}

	var parseErr *ParseError
	_, err := Parse("<AZ><bad>", Options{})
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 4, parseErr.Pos)
}

func TestRepeatedClass(t *testing.T) {
	t.Parallel()

	set, err := Parse("<AZ>:1<09><AZ>:1", Options{})
	require.NoError(t, err)
	assert.Len(t, set.Classes, 2)
	assert.Equal(t, 1, set.MinLength())
	assert.Equal(t, "<AZ>:1<09>", set.String())
}

func TestPhonetic(t *testing.T) {
	t.Parallel()

	for spec, typ := range map[string]Type{
		"<phonetic>":  PhoneticLower,
		"<phoneticu>": PhoneticUpper,
		"<phoneticx>": PhoneticMixed,
	} {
		set, err := Parse(spec, Options{})
		require.NoError(t, err, spec)
		assert.Equal(t, typ, set.Type, spec)
		assert.True(t, set.Type.IsPhonetic())
	}
}

func TestExcludeAmbiguous(t *testing.T) {
	t.Parallel()

	set, err := Parse("<AZ><09>", Options{ExcludeAmbiguous: true})
	require.NoError(t, err)
	for _, r := range DefaultAmbiguous {
		assert.False(t, set.Contains(r), string(r))
	}
	assert.True(t, set.Contains('A'))

	set, err = Parse("<AZ>", Options{ExcludeAmbiguous: true, Ambiguous: "ABC"})
	require.NoError(t, err)
	assert.Equal(t, 23, set.UniqueSize())

	// a class left empty is invalid
	_, err = Parse("<AZ>01", Options{ExcludeAmbiguous: true})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestCustomSymbols(t *testing.T) {
	t.Parallel()

	set, err := Parse("<sym>", Options{Symbols: "!?"})
	require.NoError(t, err)
	assert.Equal(t, []rune("!?"), set.Chars)
}

func TestEntropyFor(t *testing.T) {
	t.Parallel()

	set, err := Parse("<AZ><09>:4+", Options{})
	require.NoError(t, err)
	require.NoError(t, set.CheckLength(10))
	assert.Equal(t, 51, int(math.Floor(set.EntropyFor(10))))
	assert.ErrorIs(t, set.CheckLength(3), ErrInvalid)

	// exact classes contribute their own size only
	set, err = Parse("<09>:2<az>", Options{})
	require.NoError(t, err)
	assert.Equal(t, []rune(Lower), set.Filler())
	assert.InDelta(t, 2*math.Log2(10)+8*math.Log2(26), set.EntropyFor(10), 1e-9)
}

func TestHighANSI(t *testing.T) {
	t.Parallel()

	high := HighANSI()
	assert.Equal(t, 94, utf8.RuneCountInString(high))
	assert.NotContains(t, high, "\u00ad")
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	names := Placeholders()
	assert.Contains(t, names, "<AZ>")
	assert.Contains(t, names, "<etr>")
	assert.Contains(t, names, "<phoneticx>")

	_, _, ok := lookupPlaceholder("phoneticz>")
	assert.False(t, ok)
	p, n, ok := lookupPlaceholder("phoneticu>rest")
	require.True(t, ok)
	assert.Equal(t, PhoneticUpper, p.setType)
	assert.Equal(t, len("phoneticu>"), n)
}

func TestStripComment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<AZ>", StripComment("[upper only] <AZ>"))
	assert.Equal(t, "[unterminated", StripComment("[unterminated"))
	assert.Equal(t, "<AZ>", StripComment("<AZ>"))
}

func TestPermEntropy(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, math.Log2(10*9*8), PermEntropy(10, 3), 1e-9)
	assert.InDelta(t, math.Log2(6), PermEntropy(3, 5), 1e-9)
	assert.InDelta(t, 0, PermEntropy(5, 0), 1e-9)
}
