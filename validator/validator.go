// Package validator checks InfluxQL text for structural, lexical, semantic,
// performance and security problems. Validation never fails: malformed input
// yields diagnostics, and internal failures surface as a PARSE_ERROR.
package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/lang"
)

// DefaultMaxTimeRange is the relative time range above which a query is flagged.
const DefaultMaxTimeRange = 30 * 24 * time.Hour

// Options configures a Validator.
type Options struct {
	MaxTimeRange time.Duration
	Rules        []Rule
}

// Validator runs the validation passes. It is safe for concurrent use.
type Validator struct {
	maxTimeRange time.Duration
	rules        []*compiledRule
	passes       []pass
	logger       *zap.Logger
}

type pass struct {
	name string
	run  func(v *Validator, s *scan) ([]Diagnostic, error)
}

// New creates a validator, compiling any custom rules.
func New(opts Options, logger *zap.Logger) (*Validator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxTimeRange <= 0 {
		opts.MaxTimeRange = DefaultMaxTimeRange
	}

	rules, err := compileRules(opts.Rules)
	if err != nil {
		return nil, err
	}

	v := &Validator{
		maxTimeRange: opts.MaxTimeRange,
		rules:        rules,
		logger:       logger.With(zap.String("component", "validator")),
	}
	v.passes = []pass{
		{"brackets", (*Validator).checkBrackets},
		{"quotes", (*Validator).checkQuotes},
		{"spelling", (*Validator).checkSpelling},
		{"semantics", (*Validator).checkSemantics},
		{"heuristics", (*Validator).checkHeuristics},
		{"rules", (*Validator).checkRules},
	}
	return v, nil
}

// Default returns a validator with default options and no custom rules.
func Default() *Validator {
	v, _ := New(Options{}, nil)
	return v
}

// Validate runs every pass over text.
func (v *Validator) Validate(text string) ValidationResult {
	if strings.TrimSpace(text) == "" {
		return newResult(nil)
	}

	s := newScan(text)
	var diags []Diagnostic
	failed := false
	for _, p := range v.passes {
		found, err := v.runPass(p, s)
		if err != nil {
			v.logger.Warn("Validation pass failed", zap.String("pass", p.name), zap.Error(err))
			if !failed {
				failed = true
				diags = append(diags, s.whole(SeverityError, CodeParseError,
					fmt.Sprintf("Unable to analyze query: %v", err)))
			}
			continue
		}
		diags = append(diags, found...)
	}
	return newResult(diags)
}

func (v *Validator) runPass(p pass, s *scan) (diags []Diagnostic, err error) {
	defer func() {
		if r := recover(); r != nil {
			diags, err = nil, fmt.Errorf("%s pass panicked: %v", p.name, r)
		}
	}()
	return p.run(v, s)
}

var bracketPairs = map[byte]byte{')': '(', ']': '[', '}': '{'}

type openBracket struct {
	ch     byte
	offset int
}

// checkBrackets matches brackets with a stack. Quoted and regex content is
// ignored; a bracket may be closed on a later line.
func (v *Validator) checkBrackets(s *scan) ([]Diagnostic, error) {
	var diags []Diagnostic
	var stack []openBracket

	for li, line := range s.masked {
		base := s.starts[li]
		for i := 0; i < len(line); i++ {
			c := line[i]
			switch c {
			case '(', '[', '{':
				stack = append(stack, openBracket{c, base + i})
			case ')', ']', '}':
				if len(stack) == 0 {
					diags = append(diags, s.span(base+i, base+i+1, SeverityError, CodeUnmatchedClosingBracket,
						fmt.Sprintf("Unmatched closing bracket '%c'", c)))
					continue
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.ch != bracketPairs[c] {
					diags = append(diags, s.span(top.offset, base+i+1, SeverityError, CodeMismatchedBracket,
						fmt.Sprintf("Bracket '%c' is closed by '%c'", top.ch, c)))
				}
			}
		}
	}

	for _, open := range stack {
		diags = append(diags, s.span(open.offset, open.offset+1, SeverityError, CodeUnclosedBracket,
			fmt.Sprintf("Unclosed bracket '%c'", open.ch)))
	}
	return diags, nil
}

// checkQuotes reports quotes left open at the end of a line.
func (v *Validator) checkQuotes(s *scan) ([]Diagnostic, error) {
	var diags []Diagnostic
	for li, col := range s.openQuote {
		if col < 0 {
			continue
		}
		start := s.starts[li] + col
		end := s.starts[li] + len(s.lines[li])
		diags = append(diags, s.span(start, end, SeverityError, CodeUnclosedQuote,
			fmt.Sprintf("Unterminated %s literal", quoteName(s.lines[li][col]))))
	}
	return diags, nil
}

func quoteName(c byte) string {
	if c == '"' {
		return "identifier"
	}
	return "string"
}

var (
	wordPattern          = regexp.MustCompile(`\b[A-Za-z]+\b`)
	tablePositionPattern = regexp.MustCompile(`(?i)\b(FROM|INTO|ON|MEASUREMENT)\s*(\S+\s*,\s*)*$`)
	operatorBefore       = regexp.MustCompile(`(=|!=|<>|<|>|=~|!~)\s*$`)
	operatorAfter        = regexp.MustCompile(`^\s*(=|!=|<>|<|>|=~|!~)`)
	fieldListBefore      = regexp.MustCompile(`(?i)(\bSELECT|,|\()\s*$`)
	leadingWord          = regexp.MustCompile(`^\s*([A-Za-z]+)\b`)
)

// checkSpelling compares unknown words against the keyword and function
// dictionaries. Words in identifier positions are skipped.
func (v *Validator) checkSpelling(s *scan) ([]Diagnostic, error) {
	var diags []Diagnostic

	for li, line := range s.masked {
		base := s.starts[li]
		for _, loc := range wordPattern.FindAllStringIndex(line, -1) {
			word := line[loc[0]:loc[1]]
			if len(word) <= 2 || lang.IsKeyword(word) || lang.IsFunction(word) {
				continue
			}

			before, after := line[:loc[0]], line[loc[1]:]
			if strings.HasSuffix(before, ".") || strings.HasSuffix(before, ":") || strings.HasPrefix(after, ".") {
				continue
			}
			if isCall(after) {
				diags = append(diags, v.checkCall(s, base+loc[0], base+loc[1], word))
				continue
			}
			if tablePositionPattern.MatchString(before) || operatorBefore.MatchString(before) || operatorAfter.MatchString(after) {
				continue
			}
			if isFieldReference(before, after) {
				continue
			}

			if candidate, ok := closestMatch(word, spellingCandidates()); ok {
				d := s.span(base+loc[0], base+loc[1], SeverityWarning, CodePossibleTypo,
					fmt.Sprintf("Unknown word '%s'. Did you mean '%s'?", word, candidate))
				d.QuickFix = &QuickFix{Title: "Replace with " + candidate, ReplacementText: candidate}
				diags = append(diags, d)
			}
		}
	}
	return diags, nil
}

// isFieldReference reports whether the word between before and after sits in
// a field list or argument list and is followed by the end of the item.
func isFieldReference(before, after string) bool {
	if !fieldListBefore.MatchString(before) {
		return false
	}
	rest := strings.TrimLeft(after, " \t")
	if rest == "" || rest[0] == ',' || rest[0] == ')' || rest[0] == ';' {
		return true
	}
	m := leadingWord.FindStringSubmatch(rest)
	return m != nil && lang.IsKeyword(m[1])
}

func isCall(after string) bool {
	return strings.HasPrefix(strings.TrimLeft(after, " \t"), "(")
}

func (v *Validator) checkCall(s *scan, start, end int, word string) Diagnostic {
	candidate, ok := closestMatch(word, lang.FunctionNames())
	if !ok {
		return s.span(start, end, SeverityError, CodeUnknownFunction,
			fmt.Sprintf("Unknown function '%s'", word))
	}
	d := s.span(start, end, SeverityWarning, CodeUnknownFunction,
		fmt.Sprintf("Unknown function '%s'. Did you mean '%s'?", word, candidate))
	d.QuickFix = &QuickFix{Title: "Replace with " + candidate, ReplacementText: candidate}
	return d
}

var (
	selectPattern      = regexp.MustCompile(`\bSELECT\b`)
	selectStarPattern  = regexp.MustCompile(`\bSELECT\s+\*`)
	fromPattern        = regexp.MustCompile(`\bFROM\b`)
	wherePattern       = regexp.MustCompile(`\bWHERE\b`)
	limitPattern       = regexp.MustCompile(`\bLIMIT\b`)
	groupByPattern     = regexp.MustCompile(`\bGROUP\s+BY\b`)
	groupByTimePattern = regexp.MustCompile(`\bGROUP\s+BY\b[^;]*\bTIME\s*\(`)
	timeFilterPattern  = regexp.MustCompile(`\bTIME\s*(>=|<=|!=|<>|=|>|<)`)
	callPattern        = regexp.MustCompile(`\b([A-Z_][A-Z0-9_]*)\s*\(`)
)

// checkSemantics reports missing clauses of SELECT statements.
func (v *Validator) checkSemantics(s *scan) ([]Diagnostic, error) {
	sel := selectPattern.FindStringIndex(s.upper)
	if sel == nil {
		return nil, nil
	}

	var diags []Diagnostic
	hasFrom := fromPattern.MatchString(s.upper)
	hasWhere := wherePattern.MatchString(s.upper)

	if !hasFrom {
		diags = append(diags, s.span(sel[0], sel[1], SeverityError, CodeMissingFrom,
			"SELECT statement is missing a FROM clause"))
	}

	if loc := groupByPattern.FindStringIndex(s.upper); loc != nil && !hasWhere && groupByTimePattern.MatchString(s.upper) {
		diags = append(diags, s.span(loc[0], loc[1], SeverityWarning, CodeGroupByTimeWithoutWhere,
			"GROUP BY time() without a WHERE clause groups over all data"))
	}

	if !hasFrom {
		return diags, nil
	}

	if !timeFilterPattern.MatchString(s.upper) {
		d := s.whole(SeverityInfo, CodeMissingTimeFilter, "Query has no time filter; consider bounding the time range")
		if !hasWhere {
			// the fix appends a WHERE, so a LIMIT fix would collide with it
			d.QuickFix = &QuickFix{
				Title:           "Add time filter",
				ReplacementText: s.appendClause("WHERE time > now() - 1h"),
			}
			return append(diags, d), nil
		}
		diags = append(diags, d)
	}

	if !limitPattern.MatchString(s.upper) && !isAggregated(s.upper) {
		d := s.whole(SeverityInfo, CodeMissingLimit, "Query has no LIMIT; consider limiting the number of rows")
		d.QuickFix = &QuickFix{Title: "Add LIMIT", ReplacementText: s.appendClause("LIMIT 100")}
		diags = append(diags, d)
	}
	return diags, nil
}

// isAggregated reports whether the statement calls an aggregate, selector or
// transform function, or groups its rows.
func isAggregated(upper string) bool {
	if groupByPattern.MatchString(upper) {
		return true
	}
	for _, m := range callPattern.FindAllStringSubmatch(upper, -1) {
		if m[1] != "NOW" && m[1] != "TIME" && lang.IsFunction(m[1]) {
			return true
		}
	}
	return false
}

var (
	regexOperatorPattern = regexp.MustCompile(`=~|!~`)
	relativeTimePattern  = regexp.MustCompile(`(?i)now\(\)\s*-\s*(\d+)\s*(ns|us|µs|ms|s|m|h|d|w|y)\b`)
	destructivePattern   = regexp.MustCompile(`\b(DROP|DELETE|ALTER)\b`)
)

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
	"y":  365 * 24 * time.Hour,
}

// checkHeuristics flags full scans, regex predicates, large relative time
// ranges and destructive statements.
func (v *Validator) checkHeuristics(s *scan) ([]Diagnostic, error) {
	var diags []Diagnostic

	if loc := selectStarPattern.FindStringIndex(s.upper); loc != nil && !wherePattern.MatchString(s.upper) {
		diags = append(diags, s.span(loc[0], loc[1], SeverityWarning, CodeFullScan,
			"SELECT * without a WHERE clause scans the whole measurement"))
	}

	if loc := regexOperatorPattern.FindStringIndex(s.code); loc != nil {
		diags = append(diags, s.span(loc[0], loc[1], SeverityInfo, CodeRegexFilter,
			"Regular expression predicates cannot use the index and may be slow"))
	}

	for _, m := range relativeTimePattern.FindAllStringSubmatchIndex(s.code, -1) {
		quantity, unit := s.code[m[2]:m[3]], strings.ToLower(s.code[m[4]:m[5]])
		if v.exceedsTimeRange(quantity, unit) {
			diags = append(diags, s.span(m[0], m[1], SeverityWarning, CodeLargeTimeRange,
				fmt.Sprintf("Time range of %s%s exceeds %d days", quantity, unit, int(v.maxTimeRange.Hours()/24))))
		}
	}

	for _, loc := range destructivePattern.FindAllStringIndex(s.upper, -1) {
		word := s.upper[loc[0]:loc[1]]
		diags = append(diags, s.span(loc[0], loc[1], SeverityWarning, CodeDestructiveStatement,
			fmt.Sprintf("%s is destructive and requires explicit confirmation", word)))
	}
	return diags, nil
}

// exceedsTimeRange reports whether quantity units is longer than the
// configured maximum. Quantities too large to represent always exceed it.
func (v *Validator) exceedsTimeRange(quantity, unit string) bool {
	n, err := cast.ToInt64E(strings.TrimLeft(quantity, "0"))
	if err != nil {
		return quantity != "" && strings.Trim(quantity, "0") != ""
	}
	per := durationUnits[unit]
	if n <= 0 {
		return false
	}
	if n > int64(math.MaxInt64/per) {
		return true
	}
	return time.Duration(n)*per > v.maxTimeRange
}
