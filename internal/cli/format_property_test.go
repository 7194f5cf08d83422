package cli

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestProperty_TruncateStringBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("result never exceeds the limit", prop.ForAll(
		func(s string, maxLen int) bool {
			out := TruncateString(s, maxLen)
			return utf8.RuneCountInString(out) <= maxLen
		},
		gen.AnyString(),
		gen.IntRange(0, 64),
	))

	properties.Property("short strings are untouched", prop.ForAll(
		func(s string) bool {
			return TruncateString(s, utf8.RuneCountInString(s)) == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestProperty_PadRightWidth(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("padded width is max(len, length)", prop.ForAll(
		func(s string, length int) bool {
			out := PadRight(s, length)
			n := utf8.RuneCountInString(s)
			want := length
			if n > length {
				want = n
			}
			return utf8.RuneCountInString(out) == want && strings.HasPrefix(out, s)
		},
		gen.AlphaString(),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestProperty_MaskSecretKeepsTail(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("only the last four runes stay visible", prop.ForAll(
		func(s string) bool {
			out := MaskSecret(s)
			r := []rune(s)
			if len(r) <= 4 {
				return out == strings.Repeat("*", len(r))
			}
			return strings.HasSuffix(out, string(r[len(r)-4:])) && utf8.RuneCountInString(out) == len(r)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "3m 5s", FormatDuration(185*time.Second))
	assert.Equal(t, "2h 30m", FormatDuration(150*time.Minute))
	assert.Equal(t, "1d 2h", FormatDuration(26*time.Hour))
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "never", FormatAge(time.Time{}, now))
	assert.Equal(t, "10s ago", FormatAge(now.Add(-10*time.Second), now))
}

func TestMaskSecretEmpty(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
}
