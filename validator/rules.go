package validator

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule is a user-defined lint check. When is a boolean expression evaluated
// against the query; a true result emits a diagnostic spanning the text.
//
// Available variables: text, upper, lines, hasSelect, hasFrom, hasWhere,
// hasLimit and queryType ("select", "show", "insert", "delete", "other").
type Rule struct {
	Code     string `yaml:"code"`
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
	When     string `yaml:"when"`
}

type ruleEnv struct {
	Text      string   `expr:"text"`
	Upper     string   `expr:"upper"`
	Lines     []string `expr:"lines"`
	HasSelect bool     `expr:"hasSelect"`
	HasFrom   bool     `expr:"hasFrom"`
	HasWhere  bool     `expr:"hasWhere"`
	HasLimit  bool     `expr:"hasLimit"`
	QueryType string   `expr:"queryType"`
}

type compiledRule struct {
	Rule
	severity Severity
	program  *vm.Program
}

func compileRules(rules []Rule) ([]*compiledRule, error) {
	compiled := make([]*compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Code == "" {
			return nil, fmt.Errorf("rule %q: code is required", r.When)
		}
		sev := SeverityWarning
		if r.Severity != "" {
			var err error
			if sev, err = ParseSeverity(r.Severity); err != nil {
				return nil, fmt.Errorf("rule %s: %w", r.Code, err)
			}
		}
		program, err := expr.Compile(r.When, expr.Env(ruleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rule %s: failed to compile condition: %w", r.Code, err)
		}
		compiled = append(compiled, &compiledRule{Rule: r, severity: sev, program: program})
	}
	return compiled, nil
}

func newRuleEnv(s *scan) ruleEnv {
	upper := strings.ToUpper(s.text)
	return ruleEnv{
		Text:      s.text,
		Upper:     upper,
		Lines:     s.lines,
		HasSelect: selectPattern.MatchString(s.upper),
		HasFrom:   fromPattern.MatchString(s.upper),
		HasWhere:  wherePattern.MatchString(s.upper),
		HasLimit:  limitPattern.MatchString(s.upper),
		QueryType: queryType(s.upper),
	}
}

func queryType(upper string) string {
	fields := strings.Fields(upper)
	if len(fields) == 0 {
		return "other"
	}
	switch fields[0] {
	case "SELECT", "SHOW", "INSERT", "DELETE":
		return strings.ToLower(fields[0])
	default:
		return "other"
	}
}

// checkRules evaluates the custom rules. A rule that fails at runtime aborts
// the pass.
func (v *Validator) checkRules(s *scan) ([]Diagnostic, error) {
	if len(v.rules) == 0 {
		return nil, nil
	}

	env := newRuleEnv(s)
	var diags []Diagnostic
	for _, r := range v.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			return diags, fmt.Errorf("rule %s: %w", r.Code, err)
		}
		if matched, _ := out.(bool); matched {
			diags = append(diags, s.whole(r.severity, r.Code, r.Message))
		}
	}
	return diags, nil
}
