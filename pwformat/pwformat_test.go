package pwformat

import (
	"math"
	"strings"
	"testing"
	"unicode"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safing/pwgen/charset"
	"github.com/safing/pwgen/rng"
	"github.com/safing/pwgen/wordlist"
)

func testEnv(t *testing.T) *Env {
	t.Helper()

	pool, err := rng.New(rng.Options{})
	require.NoError(t, err)
	return &Env{Rand: pool, Words: wordlist.Default()}
}

func expand(t *testing.T, env *Env, format string) *Expansion {
	t.Helper()

	prog, err := Parse(format)
	require.NoError(t, err, format)
	result, err := prog.Expand(env, MaxOutput)
	require.NoError(t, err, format)
	return result
}

func TestParse(t *testing.T) {
	t.Parallel()

	prog, err := Parse(`[comment]*2-4d"lit]"{3<<ab>>}x`)
	require.NoError(t, err)
	require.Len(t, prog.Tokens, 4)

	d := prog.Tokens[0]
	assert.Equal(t, Placeholder, d.Kind)
	assert.Equal(t, 'd', d.Spec)
	assert.True(t, d.Unique)
	assert.Equal(t, 2, d.Min)
	assert.Equal(t, 4, d.Max)
	assert.Equal(t, 9, d.Pos)

	assert.Equal(t, Literal, prog.Tokens[1].Kind)
	assert.Equal(t, "lit]", string(prog.Tokens[1].Text))

	perm := prog.Tokens[2]
	assert.Equal(t, PermuteGroup, perm.Kind)
	assert.False(t, perm.HasCount())
	require.Len(t, perm.Children, 1)
	assert.Equal(t, CharsetGroup, perm.Children[0].Kind)
	assert.Equal(t, 3, perm.Children[0].Min)

	assert.Equal(t, 'x', prog.Tokens[3].Spec)
	assert.False(t, prog.UsesPassword())
	assert.Empty(t, prog.Problems)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	for _, format := range []string{
		`3[8q`,
		`{abc`,
		`<<ab`,
		`"unterminated`,
		`abc]`,
		`a}`,
		`a>>`,
		`[x]]`,
		`2[{d]}`,
	} {
		_, err := Parse(format)
		require.Error(t, err, format)
		assert.ErrorIs(t, err, ErrSyntax, format)
	}
}

func TestInvalidSpecifier(t *testing.T) {
	t.Parallel()

	prog, err := Parse("4dk2j")
	require.NoError(t, err)
	assert.Equal(t, 'k', prog.InvalidSpecifier())
	require.Len(t, prog.Problems, 2)
	assert.Equal(t, 2, prog.Problems[0].Pos)

	// expansion continues past invalid specifiers
	result, err := prog.Expand(testEnv(t), MaxOutput)
	require.NoError(t, err)
	assert.Len(t, result.Text, 4)
	var specErr *SpecifierError
	require.ErrorAs(t, result.Problems, &specErr)
	assert.Equal(t, 'k', specErr.Char)

	var merr *multierror.Error
	require.ErrorAs(t, result.Problems, &merr)
	assert.Len(t, merr.Errors, 2)
}

func TestRepeatGroup(t *testing.T) {
	t.Parallel()

	result := expand(t, testEnv(t), "3[8q ]")
	assert.Len(t, result.Text, 27)
	for i, r := range result.Text {
		if i%9 == 8 {
			assert.Equal(t, ' ', r)
		} else {
			assert.True(t, unicode.IsLower(r))
		}
	}
	assert.Positive(t, result.Entropy)
	assert.NoError(t, result.Problems)
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	tests := map[string]string{
		"16d": charset.Digits,
		"16h": charset.HexLower,
		"16H": charset.HexUpper,
		"16u": charset.Upper,
		"16v": charset.Vowels,
		"16Z": "AEIOU",
		"16z": strings.ToUpper(charset.Consonants),
		"16p": charset.Punctuation,
		"16b": charset.Brackets,
		"16s": charset.DefaultSymbols,
	}
	for format, allowed := range tests {
		result := expand(t, env, format)
		require.Len(t, result.Text, 16, format)
		for _, r := range result.Text {
			assert.True(t, strings.ContainsRune(allowed, r), "%s: %q", format, r)
		}
	}

	result := expand(t, env, "20E")
	for _, r := range result.Text {
		assert.False(t, strings.ContainsRune(charset.DefaultAmbiguous, r))
	}

	result = expand(t, env, "10d")
	assert.InDelta(t, 10*math.Log2(10), result.Entropy, 1e-9)
}

func TestUnique(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, "*10d")
	require.Len(t, result.Text, 10)
	seen := make(map[rune]bool)
	for _, r := range result.Text {
		assert.False(t, seen[r])
		seen[r] = true
	}
	assert.InDelta(t, charset.PermEntropy(10, 10), result.Entropy, 1e-9)

	result = expand(t, env, "*12d")
	assert.Len(t, result.Text, 10)
	assert.ErrorIs(t, result.Problems, ErrCountClamped)
}

func TestExcludeRepeats(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	env.ExcludeRepeats = true
	result := expand(t, env, "200h")
	for i := 1; i < len(result.Text); i++ {
		assert.NotEqual(t, result.Text[i-1], result.Text[i])
	}
	assert.InDelta(t, 4+199*math.Log2(15), result.Entropy, 1e-9)
}

func TestRange(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	lengths := make(map[int]bool)
	for _rangeIter := 0; _rangeIter < 200; _rangeIter++ {
		result := expand(t, env, "4-2d")
		require.GreaterOrEqual(t, len(result.Text), 2)
		require.LessOrEqual(t, len(result.Text), 4)
		lengths[len(result.Text)] = true
	}
	assert.Len(t, lengths, 3)
}

func TestPermuteGroup(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, `{"abcdef"}`)
	assert.ElementsMatch(t, []rune("abcdef"), result.Text)
	assert.InDelta(t, math.Log2(720), result.Entropy, 1e-9)

	result = expand(t, env, `2{"aabb"}`)
	assert.Len(t, result.Text, 2)
	// 4*3 orders minus the swaps within each pair
	assert.InDelta(t, math.Log2(12)-2, result.Entropy, 1e-9)
}

func TestCharsetGroup(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, `8<<"xy">>`)
	assert.Len(t, result.Text, 8)
	for _, r := range result.Text {
		assert.Contains(t, "xy", string(r))
	}
	assert.InDelta(t, 8, result.Entropy, 1e-9)

	result = expand(t, env, `5<<"zz">>`)
	assert.Equal(t, "zzzzz", string(result.Text))
	assert.Zero(t, result.Entropy)
}

func TestPassword(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	env.Password = []rune("secret")

	result := expand(t, env, `"<"P">"`)
	assert.Equal(t, "<secret>", string(result.Text))
	assert.Equal(t, PasswordUsed, result.Usage)
	assert.Zero(t, result.Entropy)

	result = expand(t, env, `3P-3P`)
	assert.Equal(t, "sec-ret", string(result.Text))
	assert.Equal(t, PasswordUsed, result.Usage)

	result = expand(t, env, `3P`)
	assert.Equal(t, PasswordTooLong, result.Usage)

	result = expand(t, env, `4d`)
	assert.Equal(t, PasswordNotUsed, result.Usage)

	env.Password = nil
	result = expand(t, env, `P4d`)
	assert.Equal(t, PasswordEmpty, result.Usage)
	assert.Len(t, result.Text, 4)
}

func TestWords(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, "3w")
	assert.Len(t, strings.Fields(string(result.Text)), 3)
	assert.InDelta(t, 3*env.Words.Entropy(), result.Entropy, 1e-9)

	result = expand(t, env, "*2W")
	assert.NotContains(t, string(result.Text), " ")
	assert.InDelta(t, charset.PermEntropy(env.Words.Size(), 2), result.Entropy, 1e-9)

	env.Words = nil
	result = expand(t, env, "w")
	assert.Empty(t, result.Text)
	assert.ErrorIs(t, result.Problems, ErrNoWordList)
}

func TestCustomSet(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, "5x")
	assert.Empty(t, result.Text)
	assert.ErrorIs(t, result.Problems, ErrNoCustomSet)

	set, err := charset.Parse("<AZ>", charset.Options{})
	require.NoError(t, err)
	env.CustomSet = set
	result = expand(t, env, "5x")
	assert.Len(t, result.Text, 5)
	assert.NoError(t, result.Problems)
}

func TestPhonetic(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, "12Q")
	assert.Equal(t, strings.ToUpper(string(result.Text)), string(result.Text))
	lower := expand(t, env, "12q")
	mixed := expand(t, env, "12r")
	assert.InDelta(t, lower.Entropy+12, mixed.Entropy, 1e-9)
}

func TestOutputLimit(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	prog, err := Parse("99999[99999d]")
	require.NoError(t, err)
	result, err := prog.Expand(env, 100)
	require.NoError(t, err)
	assert.Len(t, result.Text, 100)
	assert.ErrorIs(t, result.Problems, ErrOutputTooLong)
	assert.InDelta(t, 100*math.Log2(10), result.Entropy, 1e-9)
}

func TestLiterals(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	result := expand(t, env, "*-123456 > < +")
	assert.Equal(t, "*-123456 > < +", string(result.Text))
	assert.Zero(t, result.Entropy)
	assert.NoError(t, result.Problems)
}
