package validator

import "fmt"

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps a configuration value to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarning, SeverityInfo:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity: %q", s)
	}
}

// Diagnostic codes.
const (
	CodeUnmatchedClosingBracket = "UNMATCHED_CLOSING_BRACKET"
	CodeUnclosedBracket         = "UNCLOSED_BRACKET"
	CodeMismatchedBracket       = "MISMATCHED_BRACKET"
	CodeUnclosedQuote           = "UNCLOSED_QUOTE"
	CodePossibleTypo            = "POSSIBLE_TYPO"
	CodeUnknownFunction         = "UNKNOWN_FUNCTION"
	CodeMissingFrom             = "MISSING_FROM"
	CodeGroupByTimeWithoutWhere = "GROUP_BY_TIME_WITHOUT_WHERE"
	CodeMissingTimeFilter       = "MISSING_TIME_FILTER"
	CodeMissingLimit            = "MISSING_LIMIT"
	CodeFullScan                = "FULL_SCAN"
	CodeRegexFilter             = "REGEX_FILTER"
	CodeLargeTimeRange          = "LARGE_TIME_RANGE"
	CodeDestructiveStatement    = "DESTRUCTIVE_STATEMENT"
	CodeParseError              = "PARSE_ERROR"
)

// QuickFix is a one-shot textual fix attached to a diagnostic. For typo fixes
// ReplacementText replaces the diagnostic span; for append fixes the span is
// the empty range at the end of the text.
type QuickFix struct {
	Title           string `json:"title"`
	ReplacementText string `json:"replacementText"`
}

// Diagnostic is a single finding. Lines and columns are 1-based; EndColumn is exclusive.
type Diagnostic struct {
	StartLine   int       `json:"startLine"`
	StartColumn int       `json:"startColumn"`
	EndLine     int       `json:"endLine"`
	EndColumn   int       `json:"endColumn"`
	Message     string    `json:"message"`
	Severity    Severity  `json:"severity"`
	Code        string    `json:"code"`
	QuickFix    *QuickFix `json:"quickFix,omitempty"`
}

// Position returns "line:column" of the diagnostic start.
func (d Diagnostic) Position() string {
	return fmt.Sprintf("%d:%d", d.StartLine, d.StartColumn)
}

// ValidationResult partitions diagnostics by severity.
type ValidationResult struct {
	IsValid     bool         `json:"isValid"`
	Errors      []Diagnostic `json:"errors"`
	Warnings    []Diagnostic `json:"warnings"`
	Suggestions []Diagnostic `json:"suggestions"`
}

// All returns every diagnostic, errors first.
func (r ValidationResult) All() []Diagnostic {
	all := make([]Diagnostic, 0, len(r.Errors)+len(r.Warnings)+len(r.Suggestions))
	all = append(all, r.Errors...)
	all = append(all, r.Warnings...)
	return append(all, r.Suggestions...)
}

// ByCode returns the diagnostics carrying code.
func (r ValidationResult) ByCode(code string) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.All() {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func newResult(diags []Diagnostic) ValidationResult {
	res := ValidationResult{
		Errors:      []Diagnostic{},
		Warnings:    []Diagnostic{},
		Suggestions: []Diagnostic{},
	}
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			res.Errors = append(res.Errors, d)
		case SeverityWarning:
			res.Warnings = append(res.Warnings, d)
		default:
			res.Suggestions = append(res.Suggestions, d)
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res
}
