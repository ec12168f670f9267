package autocomplete

import (
	"strings"
	"unicode"
)

// Tokenize splits text into whitespace-delimited tokens with (, ) and , as
// standalone tokens. A quoted run stays inside a single token, so quoted
// identifiers containing spaces or punctuation survive tokenizing.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"' || c == '\'':
			end := closingQuote(text, i)
			cur.WriteString(text[i:end])
			i = end - 1
		case c == '(' || c == ')' || c == ',':
			flush()
			tokens = append(tokens, string(c))
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

// closingQuote returns the offset just past the quote closing the literal
// opened at start, or len(text) when it is never closed.
func closingQuote(text string, start int) int {
	quote := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(text)
}

// maskLiterals blanks the content of quoted literals, keeping the quote
// characters, so keyword searches never match inside them. It also reports
// whether the text ends inside an open literal.
func maskLiterals(text string) (string, bool) {
	masked := []byte(text)
	for i := 0; i < len(text); i++ {
		if text[i] != '"' && text[i] != '\'' {
			continue
		}
		end := closingQuote(text, i)
		closed := end > i+1 && text[end-1] == text[i] && !escapedAt(text, end-1)
		last := end
		if closed {
			last = end - 1
		}
		for j := i + 1; j < last; j++ {
			masked[j] = ' '
		}
		if !closed {
			return string(masked), true
		}
		i = end - 1
	}
	return string(masked), false
}

// escapedAt reports whether the character at i is preceded by an odd number of backslashes.
func escapedAt(text string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && text[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

func clampCursor(text string, cursor int) int {
	if cursor < 0 {
		return 0
	}
	if cursor > len(text) {
		return len(text)
	}
	return cursor
}

// CurrentTokenAt returns the run of word characters ending at cursor, or ""
// when the character before the cursor is not a word character.
func CurrentTokenAt(text string, cursor int) string {
	cursor = clampCursor(text, cursor)

	start := cursor
	for start > 0 && isWordChar(text[start-1]) {
		start--
	}
	return text[start:cursor]
}

var identifierEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// QuoteIdentifier wraps name in double quotes when it is empty, starts with a
// digit, or contains a character outside [A-Za-z0-9_].
func QuoteIdentifier(name string) string {
	if !needsQuoting(name) {
		return name
	}
	return `"` + identifierEscaper.Replace(name) + `"`
}

func needsQuoting(name string) bool {
	if name == "" || unicode.IsDigit(rune(name[0])) {
		return true
	}
	for i := 0; i < len(name); i++ {
		if !isWordChar(name[i]) {
			return true
		}
	}
	return false
}

// UnquoteIdentifier reverses QuoteIdentifier. Tokens that are not wrapped in
// double quotes are returned unchanged.
func UnquoteIdentifier(token string) string {
	if len(token) < 2 || token[0] != '"' || token[len(token)-1] != '"' {
		return token
	}

	inner := token[1 : len(token)-1]
	if !strings.Contains(inner, `\`) {
		return inner
	}

	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}
