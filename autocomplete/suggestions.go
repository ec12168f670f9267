package autocomplete

import (
	"regexp"
	"sort"
	"strings"

	"github.com/TFMV/influx-assist/lang"
	"github.com/TFMV/influx-assist/schema"
)

// SuggestionType discriminates the variants of Suggestion.
type SuggestionType string

const (
	TypeKeyword     SuggestionType = "keyword"
	TypeFunction    SuggestionType = "function"
	TypeDatabase    SuggestionType = "database"
	TypeMeasurement SuggestionType = "measurement"
	TypeField       SuggestionType = "field"
	TypeTag         SuggestionType = "tag"
	TypeTemplate    SuggestionType = "template"
	TypeOperator    SuggestionType = "operator"
	TypeValue       SuggestionType = "value"
)

// Suggestion is a single ranked completion candidate. Snippet insert text
// uses ${n:placeholder} markers.
type Suggestion struct {
	Label       string         `json:"label"`
	InsertText  string         `json:"insertText"`
	Type        SuggestionType `json:"type"`
	Priority    int            `json:"priority"`
	Description string         `json:"description,omitempty"`
	IsSnippet   bool           `json:"isSnippet,omitempty"`
}

// Priorities of the candidate sources.
const (
	priorityExact       = 100
	priorityPrefix      = 90
	priorityPrefixFloor = 61
	prioritySubstring   = 60
	priorityBrowse      = 30

	prioritySelectStar     = 100
	prioritySelectTemplate = 95
	priorityStar           = 98
	priorityStarElsewhere  = 85
	priorityTime           = 90
	priorityField          = 80
	priorityTag            = 75
	priorityTable          = 85
	priorityDatabase       = 85
	priorityTimeFilter     = 80
	priorityFollowUp       = 75
	priorityFromBoost      = 85
	priorityShowCommand    = 85
	priorityFunction       = 70
	priorityTimeLiteral    = 70
	priorityOperator       = 65
	priorityLiteral        = 60
)

var (
	timeReference = regexp.MustCompile(`(?i)\btime\b`)
	fromKeyword   = regexp.MustCompile(`(?i)\bFROM\b`)
)

var timeLiterals = []struct{ text, description string }{
	{"now()", "Current time"},
	{"now() - 1h", "One hour ago"},
	{"now() - 24h", "One day ago"},
	{"now() - 7d", "One week ago"},
	{"now() - 30d", "Thirty days ago"},
}

var followUpKeywords = []string{"WHERE", "GROUP BY", "ORDER BY", "LIMIT"}

type generator struct {
	state ParseState
	cache *schema.Cache
	token string
	out   []Suggestion
}

// Generate returns the completion candidates for state, sorted by descending
// priority. Candidates of equal priority keep their generation order. A nil
// cache yields keyword, operator, value and template candidates only.
func Generate(state ParseState, cache *schema.Cache) []Suggestion {
	g := &generator{state: state, cache: cache, token: state.CurrentToken}

	g.boosts()
	g.expect(state.NextExpected)
	if state.NextExpected == ExpectKeyword && state.ClauseExpected != ExpectKeyword {
		g.expect(state.ClauseExpected)
	}
	return rank(g.out)
}

func (g *generator) add(s Suggestion) {
	g.out = append(g.out, s)
}

func (g *generator) expect(e Expectation) {
	switch e {
	case ExpectKeyword:
		g.keywords()
	case ExpectField:
		g.fields()
		if g.state.CurrentClause == ClauseSelect || g.state.CurrentClause == ClauseGroupBy {
			g.functions()
		}
	case ExpectTable:
		g.tables()
	case ExpectOperator:
		g.operators()
	case ExpectValue:
		g.values()
	case ExpectFunction:
		g.functions()
		g.fields()
	case ExpectIdentifier:
		g.databases()
	}
}

// keywordPriority scores keyword against the token being typed. It returns
// false when the keyword does not match.
func keywordPriority(keyword, token string) (int, bool) {
	if token == "" {
		return priorityBrowse, true
	}

	tok := strings.ToUpper(token)
	switch {
	case keyword == tok:
		return priorityExact, true
	case strings.HasPrefix(keyword, tok):
		p := priorityPrefix + 1 - (len(keyword) - len(tok))
		if p < priorityPrefixFloor {
			p = priorityPrefixFloor
		}
		return p, true
	case strings.Contains(keyword, tok):
		return prioritySubstring, true
	default:
		return 0, false
	}
}

func (g *generator) keywords() {
	for _, kw := range lang.Keywords {
		if p, ok := keywordPriority(kw, g.token); ok {
			g.add(Suggestion{Label: kw, InsertText: kw, Type: TypeKeyword, Priority: p})
		}
	}
}

func (g *generator) fields() {
	starPriority := priorityStarElsewhere
	if g.state.CurrentClause == ClauseSelect {
		starPriority = priorityStar
	}
	g.add(Suggestion{Label: "*", InsertText: "*", Type: TypeField, Priority: starPriority, Description: "All fields and tags"})
	g.add(Suggestion{Label: "time", InsertText: "time", Type: TypeField, Priority: priorityTime, Description: "Timestamp"})

	if g.cache == nil || g.state.CurrentMeasurement == "" {
		return
	}
	ms, err := g.cache.Measurement(g.state.CurrentDatabase, g.state.CurrentMeasurement)
	if err != nil {
		return
	}

	fieldTypes := make(map[string]string, len(ms.Fields))
	names := make([]string, 0, len(ms.Fields))
	for _, f := range ms.Fields {
		fieldTypes[f.Name] = f.Type
		names = append(names, f.Name)
	}
	for _, name := range schema.MatchIdentifiers(g.token, names) {
		g.add(Suggestion{
			Label:       name,
			InsertText:  QuoteIdentifier(name),
			Type:        TypeField,
			Priority:    priorityField,
			Description: strings.TrimSpace(fieldTypes[name] + " field"),
		})
	}

	tags := make([]string, 0, len(ms.Tags))
	for _, t := range ms.Tags {
		tags = append(tags, t.Name)
	}
	for _, name := range schema.MatchIdentifiers(g.token, tags) {
		g.add(Suggestion{Label: name, InsertText: QuoteIdentifier(name), Type: TypeTag, Priority: priorityTag, Description: "tag"})
	}
}

func (g *generator) tables() {
	// a complete table followed by whitespace expects the next clause
	if g.state.CurrentClause == ClauseFrom && g.token == "" && g.state.tablesBefore > 0 &&
		!strings.EqualFold(g.state.PreviousToken, "FROM") && g.state.PreviousToken != "," {
		return
	}
	if g.cache == nil || g.state.CurrentDatabase == "" {
		return
	}
	names, err := g.cache.Measurements(g.state.CurrentDatabase)
	if err != nil {
		return
	}
	for _, name := range schema.MatchIdentifiers(g.token, names) {
		g.add(Suggestion{
			Label:       name,
			InsertText:  QuoteIdentifier(name),
			Type:        TypeMeasurement,
			Priority:    priorityTable,
			Description: "measurement in " + g.state.CurrentDatabase,
		})
	}
}

func (g *generator) databases() {
	if g.cache == nil {
		return
	}
	names, err := g.cache.Databases(g.state.connID)
	if err != nil {
		return
	}
	for _, name := range schema.MatchIdentifiers(g.token, names) {
		g.add(Suggestion{Label: name, InsertText: QuoteIdentifier(name), Type: TypeDatabase, Priority: priorityDatabase, Description: "database"})
	}
}

func (g *generator) operators() {
	for _, op := range lang.Operators {
		g.add(Suggestion{Label: op.Symbol, InsertText: op.Symbol, Type: TypeOperator, Priority: priorityOperator, Description: op.Description})
	}
}

func (g *generator) values() {
	if g.state.CurrentClause == ClauseLimit {
		for _, n := range []string{"10", "100", "1000"} {
			g.add(Suggestion{Label: n, InsertText: n, Type: TypeValue, Priority: priorityLiteral})
		}
		return
	}

	if timeReference.MatchString(g.state.whereTail) || referencesTime(g.state.WhereConditions) {
		for _, lit := range timeLiterals {
			g.add(Suggestion{Label: lit.text, InsertText: lit.text, Type: TypeValue, Priority: priorityTimeLiteral, Description: lit.description})
		}
	}
	g.add(Suggestion{Label: "true", InsertText: "true", Type: TypeValue, Priority: priorityLiteral, Description: "Boolean"})
	g.add(Suggestion{Label: "false", InsertText: "false", Type: TypeValue, Priority: priorityLiteral, Description: "Boolean"})
}

func referencesTime(conditions []string) bool {
	for _, c := range conditions {
		if timeReference.MatchString(c) {
			return true
		}
	}
	return false
}

func (g *generator) functions() {
	for _, name := range functionTrie.GetSuggestions(g.token, 0) {
		fn, _ := lang.LookupFunction(name)
		g.add(Suggestion{
			Label:       name,
			InsertText:  name + "()",
			Type:        TypeFunction,
			Priority:    priorityFunction,
			Description: fn.Description,
			IsSnippet:   true,
		})
	}
}

// boosts adds the statement-specific candidates.
func (g *generator) boosts() {
	st := g.state
	before := strings.ToUpper(strings.TrimSpace(st.beforeCursor))

	switch st.QueryType {
	case QuerySelect:
		if before == "SELECT" && g.token == "" {
			g.add(Suggestion{Label: "*", InsertText: "*", Type: TypeField, Priority: prioritySelectStar, Description: "All fields and tags"})
			g.add(Suggestion{
				Label:       "SELECT * FROM",
				InsertText:  "* FROM ${1:measurement}",
				Type:        TypeTemplate,
				Priority:    prioritySelectTemplate,
				Description: "Select everything from a measurement",
				IsSnippet:   true,
			})
		}

		if st.CurrentClause == ClauseSelect && !fromKeyword.MatchString(st.beforeCursor) {
			g.add(Suggestion{Label: "FROM", InsertText: "FROM", Type: TypeKeyword, Priority: priorityFromBoost})
		}

		if st.CurrentClause == ClauseFrom && st.tablesBefore > 0 && !st.hasWhere && g.token == "" && endsWithSpace(st.beforeCursor) {
			g.add(Suggestion{
				Label:       "WHERE time > now() - 1h",
				InsertText:  "WHERE time > now() - ${1:1h}",
				Type:        TypeTemplate,
				Priority:    priorityTimeFilter,
				Description: "Restrict the query to a recent time range",
				IsSnippet:   true,
			})
			for _, kw := range followUpKeywords {
				g.add(Suggestion{Label: kw, InsertText: kw, Type: TypeKeyword, Priority: priorityFollowUp})
			}
		}

	case QueryShow:
		if st.CurrentClause != ClauseShow || strings.EqualFold(st.PreviousToken, "ON") {
			return
		}
		tok := strings.ToUpper(g.token)
		for _, cmd := range lang.ShowCommands {
			if tok != "" && !strings.HasPrefix(cmd, tok) {
				continue
			}
			g.add(Suggestion{Label: cmd, InsertText: cmd, Type: TypeKeyword, Priority: priorityShowCommand, Description: "SHOW " + cmd})
		}
	}
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}

type suggestionKey struct {
	typ   SuggestionType
	label string
}

// rank deduplicates by type and label, keeping the highest priority at the
// position of the first occurrence, then sorts stably by descending priority.
func rank(in []Suggestion) []Suggestion {
	out := make([]Suggestion, 0, len(in))
	seen := make(map[suggestionKey]int, len(in))
	for _, s := range in {
		key := suggestionKey{s.Type, s.Label}
		if i, ok := seen[key]; ok {
			if s.Priority > out[i].Priority {
				out[i] = s
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
