package validator

import (
	"sort"
	"strings"
)

// scan is the pre-processed form of the text shared by all passes.
type scan struct {
	text   string
	lines  []string
	masked []string // lines with string, identifier and regex literals blanked
	starts []int    // byte offset of each line in text

	// unterminated quote start column per line (0-based), -1 when none
	openQuote []int
	// start column of a -- comment per line, -1 when none
	comment []int

	// joined masked text and its uppercase copy, offsets identical to text
	code  string
	upper string
}

func newScan(text string) *scan {
	s := &scan{text: text}
	s.lines = strings.Split(text, "\n")
	s.masked = make([]string, len(s.lines))
	s.openQuote = make([]int, len(s.lines))
	s.comment = make([]int, len(s.lines))
	s.starts = make([]int, len(s.lines))

	offset := 0
	for i, line := range s.lines {
		s.starts[i] = offset
		offset += len(line) + 1
		s.masked[i], s.openQuote[i], s.comment[i] = maskLine(line)
	}
	s.code = strings.Join(s.masked, "\n")
	s.upper = strings.ToUpper(s.code)
	return s
}

// maskLine blanks quoted strings, quoted identifiers, regex literals and
// trailing -- comments so that later passes only see code. It also returns
// the column of a quote left open at end of line and the column where a
// comment starts, each -1 when absent.
func maskLine(line string) (string, int, int) {
	masked := []byte(line)
	var delim byte
	start := -1

	for i := 0; i < len(line); i++ {
		c := line[i]
		if delim != 0 {
			masked[i] = ' '
			if c == '\\' && i+1 < len(line) {
				i++
				masked[i] = ' '
				continue
			}
			if c == delim {
				delim = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			delim, start = c, i
			masked[i] = ' '
		case c == '/' && regexStarts(line, i):
			delim, start = '/', i
			masked[i] = ' '
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			for j := i; j < len(line); j++ {
				masked[j] = ' '
			}
			return string(masked), -1, i
		}
	}

	if delim == '\'' || delim == '"' {
		return string(masked), start, -1
	}
	return string(masked), -1, -1
}

// regexStarts reports whether the slash at i opens a regex literal, which in
// InfluxQL only follows =~ or !~.
func regexStarts(line string, i int) bool {
	j := i - 1
	for j >= 0 && line[j] == ' ' {
		j--
	}
	return j >= 1 && line[j] == '~' && (line[j-1] == '=' || line[j-1] == '!')
}

// position converts a byte offset into a 1-based line and column.
func (s *scan) position(offset int) (int, int) {
	line := sort.Search(len(s.starts), func(i int) bool { return s.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return line + 1, offset - s.starts[line] + 1
}

// span builds a diagnostic covering text[start:end].
func (s *scan) span(start, end int, sev Severity, code, msg string) Diagnostic {
	sl, sc := s.position(start)
	el, ec := s.position(end)
	return Diagnostic{
		StartLine:   sl,
		StartColumn: sc,
		EndLine:     el,
		EndColumn:   ec,
		Message:     msg,
		Severity:    sev,
		Code:        code,
	}
}

// whole builds a diagnostic covering the complete text.
func (s *scan) whole(sev Severity, code, msg string) Diagnostic {
	last := len(s.lines) - 1
	return Diagnostic{
		StartLine:   1,
		StartColumn: 1,
		EndLine:     last + 1,
		EndColumn:   len(s.lines[last]) + 1,
		Message:     msg,
		Severity:    sev,
		Code:        code,
	}
}

// appendClause returns the text with clause appended before any trailing
// semicolon or -- comment.
func (s *scan) appendClause(clause string) string {
	body := strings.TrimRight(s.text, " \t\r\n")
	comment := ""
	last := strings.LastIndex(body, "\n") + 1
	if c := s.comment[strings.Count(body, "\n")]; c >= 0 {
		comment = " " + body[last+c:]
		body = strings.TrimRight(body[:last+c], " \t\r\n")
	}

	suffix := ""
	if strings.HasSuffix(body, ";") {
		body = strings.TrimRight(strings.TrimSuffix(body, ";"), " \t")
		suffix = ";"
	}
	return body + " " + clause + suffix + comment
}
