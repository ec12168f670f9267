package autocomplete

import (
	"regexp"
	"strings"

	"github.com/TFMV/influx-assist/lang"
)

// QueryType is the kind of statement being written.
type QueryType string

const (
	QuerySelect  QueryType = "SELECT"
	QueryShow    QueryType = "SHOW"
	QueryInsert  QueryType = "INSERT"
	QueryCreate  QueryType = "CREATE"
	QueryDrop    QueryType = "DROP"
	QueryAlter   QueryType = "ALTER"
	QueryUnknown QueryType = "UNKNOWN"
)

// Clause is the section of the statement the cursor is in.
type Clause string

const (
	ClauseSelect  Clause = "SELECT"
	ClauseFrom    Clause = "FROM"
	ClauseWhere   Clause = "WHERE"
	ClauseGroupBy Clause = "GROUP_BY"
	ClauseOrderBy Clause = "ORDER_BY"
	ClauseLimit   Clause = "LIMIT"
	ClauseInto    Clause = "INTO"
	ClauseValues  Clause = "VALUES"
	ClauseShow    Clause = "SHOW"
	ClauseUnknown Clause = "UNKNOWN"
)

// Expectation is the predicted category of the next token.
type Expectation string

const (
	ExpectKeyword    Expectation = "keyword"
	ExpectIdentifier Expectation = "identifier"
	ExpectValue      Expectation = "value"
	ExpectOperator   Expectation = "operator"
	ExpectField      Expectation = "field"
	ExpectTable      Expectation = "table"
	ExpectFunction   Expectation = "function"
)

// ParseState describes the syntactic neighborhood of the cursor. Clause and
// expectation only depend on the text before the cursor.
type ParseState struct {
	QueryType       QueryType
	CurrentClause   Clause
	SelectedFields  []string
	FromTables      []string
	WhereConditions []string
	CurrentToken    string
	PreviousToken   string
	NextExpected    Expectation
	// ClauseExpected is what the clause alone predicts. It differs from
	// NextExpected when the token being typed could still become a keyword.
	ClauseExpected     Expectation
	CurrentDatabase    string
	CurrentMeasurement string

	connID       string
	beforeCursor string
	hasWhere     bool
	tablesBefore int
	whereTail    string
}

var queryTypes = []QueryType{QuerySelect, QueryShow, QueryInsert, QueryCreate, QueryDrop, QueryAlter}

type clauseRule struct {
	clause  Clause
	pattern *regexp.Regexp
}

var whereKeyword = regexp.MustCompile(`\bWHERE\b`)

// clauseRules are in detection priority order.
var clauseRules = []clauseRule{
	{ClauseOrderBy, regexp.MustCompile(`\bORDER\s+BY\b`)},
	{ClauseGroupBy, regexp.MustCompile(`\bGROUP\s+BY\b`)},
	{ClauseWhere, whereKeyword},
	{ClauseFrom, regexp.MustCompile(`\bFROM\b`)},
	{ClauseInto, regexp.MustCompile(`\bINTO\b`)},
	{ClauseValues, regexp.MustCompile(`\bVALUES\b`)},
	{ClauseSelect, regexp.MustCompile(`\bSELECT\b`)},
	{ClauseShow, regexp.MustCompile(`\bSHOW\b`)},
	{ClauseLimit, regexp.MustCompile(`\bLIMIT\b`)},
}

var (
	selectFieldsPattern    = regexp.MustCompile(`(?is)\bSELECT\s+(.*?)(?:\s+FROM\b|\s*;|$)`)
	fromTablesPattern      = regexp.MustCompile(`(?is)\bFROM\s+(.*?)(?:\s+WHERE\b|\s+GROUP\b|\s+ORDER\b|\s+LIMIT\b|\s*;|$)`)
	whereConditionsPattern = regexp.MustCompile(`(?is)\bWHERE\s+(.*?)(?:\s+GROUP\b|\s+ORDER\b|\s+LIMIT\b|\s*;|$)`)
	conditionSeparator     = regexp.MustCompile(`(?i)\s+(?:AND|OR)\s+`)

	tailLogical    = regexp.MustCompile(`(?i)\b(AND|OR)$`)
	tailOperator   = regexp.MustCompile(`(=~|!~|!=|<>|<=|>=|=|<|>)$`)
	tailIdentifier = regexp.MustCompile(`\b[A-Za-z_]\w*$`)
)

var (
	keywordTrie  = NewTrieFrom(lang.Keywords)
	functionTrie = NewTrieFrom(lang.FunctionNames())
)

// Analyze builds the parse state of text for a cursor offset.
func Analyze(text string, cursor int) ParseState {
	cursor = clampCursor(text, cursor)
	before := text[:cursor]
	masked, _ := maskLiterals(before)
	upper := strings.ToUpper(masked)

	state := ParseState{
		QueryType:       detectQueryType(upper),
		CurrentClause:   detectClause(upper),
		SelectedFields:  extractSelectFields(text),
		FromTables:      extractFromTables(text),
		WhereConditions: extractWhereConditions(text),
		CurrentToken:    CurrentTokenAt(text, cursor),
		beforeCursor:    before,
		hasWhere:        whereKeyword.MatchString(upper),
		tablesBefore:    len(extractFromTables(before)),
	}
	state.PreviousToken = previousToken(before, state.CurrentToken)
	if len(state.FromTables) > 0 {
		state.CurrentMeasurement = measurementName(state.FromTables[0])
	}

	if state.CurrentClause == ClauseWhere {
		state.whereTail = whereTail(masked, upper, state.CurrentToken)
	}
	state.ClauseExpected = state.expectFromClause()
	state.NextExpected = state.ClauseExpected
	if state.CurrentToken != "" && keywordTrie.HasPrefix(state.CurrentToken) {
		state.NextExpected = ExpectKeyword
	}
	return state
}

func detectQueryType(upper string) QueryType {
	trimmed := strings.TrimSpace(upper)
	for _, qt := range queryTypes {
		kw := string(qt)
		if strings.HasPrefix(trimmed, kw) && (len(trimmed) == len(kw) || !isWordChar(trimmed[len(kw)])) {
			return qt
		}
	}
	return QueryUnknown
}

// detectClause returns the clause whose keyword occurs last in upper. Ties
// go to the earlier rule.
func detectClause(upper string) Clause {
	last := make([]int, len(clauseRules))
	latest := -1
	for i, rule := range clauseRules {
		last[i] = lastMatch(rule.pattern, upper)
		if last[i] > latest {
			latest = last[i]
		}
	}
	if latest < 0 {
		return ClauseUnknown
	}
	for i, rule := range clauseRules {
		if last[i] == latest {
			return rule.clause
		}
	}
	return ClauseUnknown
}

func lastMatch(re *regexp.Regexp, s string) int {
	matches := re.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return -1
	}
	return matches[len(matches)-1][0]
}

func extractSelectFields(text string) []string {
	return capture(selectFieldsPattern, text, splitList)
}

func extractFromTables(text string) []string {
	return capture(fromTablesPattern, text, splitList)
}

func extractWhereConditions(text string) []string {
	return capture(whereConditionsPattern, text, func(s string) []string {
		return conditionSeparator.Split(s, -1)
	})
}

func capture(re *regexp.Regexp, text string, split func(string) []string) []string {
	m := re.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return []string{}
	}

	parts := split(m[1])
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ReplaceAll(p, `"`, ""))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitList splits on commas outside parentheses and quotes.
func splitList(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\'':
			i = closingQuote(s, i) - 1
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// measurementName reduces db.rp.measurement and db..measurement to the measurement.
func measurementName(table string) string {
	if strings.HasPrefix(table, "/") {
		return table
	}
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[i+1:]
	}
	return table
}

func previousToken(before, current string) string {
	tokens := Tokenize(before)
	if len(tokens) > 0 && current != "" && strings.HasSuffix(tokens[len(tokens)-1], current) {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

// whereTail is the masked text after the last WHERE, without the token being typed.
func whereTail(masked, upper, current string) string {
	idx := lastMatch(whereKeyword, upper)
	if idx < 0 {
		return ""
	}
	tail := masked[idx+len("WHERE"):]
	return strings.TrimSuffix(tail, current)
}

func (s ParseState) expectFromClause() Expectation {
	switch s.CurrentClause {
	case ClauseSelect:
		if s.CurrentToken != "" && functionTrie.HasPrefix(s.CurrentToken) {
			return ExpectFunction
		}
		return ExpectField
	case ClauseFrom, ClauseInto:
		return ExpectTable
	case ClauseGroupBy, ClauseOrderBy:
		return ExpectField
	case ClauseShow:
		if strings.EqualFold(s.PreviousToken, "ON") {
			return ExpectIdentifier
		}
		return ExpectKeyword
	case ClauseWhere:
		return classifyWhereTail(s.whereTail)
	case ClauseLimit, ClauseValues:
		return ExpectValue
	default:
		return ExpectKeyword
	}
}

// classifyWhereTail predicts the next token of a WHERE expression from its
// last complete token. Function calls are not understood: a tail ending in
// "MEAN(x) " predicts a field.
func classifyWhereTail(tail string) Expectation {
	if _, open := maskLiterals(tail); open {
		return ExpectValue
	}

	t := strings.TrimRight(tail, " \t\r\n")
	switch {
	case tailLogical.MatchString(t):
		return ExpectField
	case tailOperator.MatchString(t):
		return ExpectValue
	case strings.HasSuffix(t, `"`), tailIdentifier.MatchString(t):
		return ExpectOperator
	default:
		return ExpectField
	}
}
