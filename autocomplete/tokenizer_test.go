package autocomplete

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"SELECT mean(usage),max(x) FROM cpu", []string{"SELECT", "mean", "(", "usage", ")", ",", "max", "(", "x", ")", "FROM", "cpu"}},
		{"SELECT  *\n\tFROM   cpu", []string{"SELECT", "*", "FROM", "cpu"}},
		{`SELECT "my field" FROM "my db".."cpu load"`, []string{"SELECT", `"my field"`, "FROM", `"my db".."cpu load"`}},
		{"WHERE host = 'a, (b)'", []string{"WHERE", "host", "=", "'a, (b)'"}},
		{"WHERE host = 'open quote", []string{"WHERE", "host", "=", "'open quote"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.text), tt.text)
	}
}

func TestTokenizeIdempotent(t *testing.T) {
	texts := []string{
		"SELECT mean(usage),max(x) FROM cpu WHERE time > now() - 1h GROUP BY time(5m)",
		`SELECT "a b",c FROM "weird, (name)" WHERE tag = 'x y' AND f = "q\"uote"`,
		"SHOW TAG VALUES FROM cpu WITH KEY = host",
		"((,,))",
		"'unterminated ( , string",
	}

	for _, text := range texts {
		first := Tokenize(text)
		second := Tokenize(strings.Join(first, " "))
		assert.Equal(t, first, second, text)
	}
}

func TestCurrentTokenAt(t *testing.T) {
	tests := []struct {
		text   string
		cursor int
		want   string
	}{
		{"SELECT us", 9, "us"},
		{"SELECT ", 7, ""},
		{"SELECT mean(", 12, ""},
		{"SELECT cpu_1", 12, "cpu_1"},
		{"SELECT usage FROM cpu", 9, "us"},
		{"SELEC", 100, "SELEC"},
		{"SELEC", -3, ""},
		{"", 0, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CurrentTokenAt(tt.text, tt.cursor), "%q at %d", tt.text, tt.cursor)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"cpu", "cpu"},
		{"usage_idle", "usage_idle"},
		{"my field", `"my field"`},
		{"1m_load", `"1m_load"`},
		{"disk-io", `"disk-io"`},
		{"", `""`},
		{`say "hi"`, `"say \"hi\""`},
		{`back\slash`, `"back\\slash"`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteIdentifier(tt.name), tt.name)
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	names := []string{"cpu", "my field", "1m_load", "disk-io", "", `say "hi"`, `back\slash`, "a, (b)", "tab\there", "ünïcode"}

	for _, name := range names {
		quoted := QuoteIdentifier(name)
		tokens := Tokenize(quoted)
		if name == "" {
			require.Equal(t, []string{`""`}, tokens)
		} else {
			require.Len(t, tokens, 1, name)
		}
		assert.Equal(t, name, UnquoteIdentifier(tokens[0]), name)
	}
}

func TestUnquoteIdentifier(t *testing.T) {
	assert.Equal(t, "cpu", UnquoteIdentifier("cpu"))
	assert.Equal(t, `"`, UnquoteIdentifier(`"`))
	assert.Equal(t, "my db", UnquoteIdentifier(`"my db"`))
	assert.Equal(t, "'single'", UnquoteIdentifier("'single'"))
}

func TestMaskLiterals(t *testing.T) {
	masked, open := maskLiterals("WHERE host = 'from' AND x = \"where\"")
	assert.Equal(t, "WHERE host = '    ' AND x = \"     \"", masked)
	assert.False(t, open)

	masked, open = maskLiterals("WHERE host = 'it\\'s")
	assert.Equal(t, "WHERE host = '    ", masked)
	assert.True(t, open)
}
