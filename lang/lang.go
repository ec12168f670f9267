// Package lang holds the InfluxQL vocabulary shared by completion and validation.
package lang

import "strings"

// Keywords are the reserved words offered for completion and used for spell-checking.
var Keywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT", "SLIMIT", "OFFSET", "SOFFSET",
	"AND", "OR", "NOT", "AS", "ASC", "DESC", "FILL", "INTO", "ON", "TZ",
	"SHOW", "DATABASES", "MEASUREMENTS", "SERIES", "FIELD", "TAG", "KEYS", "VALUES",
	"RETENTION", "POLICIES", "CONTINUOUS", "QUERIES", "USERS", "WITH", "KEY",
	"INSERT", "CREATE", "DROP", "ALTER", "DELETE", "DATABASE", "MEASUREMENT",
	"POLICY", "DURATION", "REPLICATION", "SHARD", "DEFAULT", "GRANT", "REVOKE",
	"USER", "PASSWORD", "ALL", "PRIVILEGES", "KILL", "QUERY", "EXPLAIN", "ANALYZE",
	"NULL", "NONE", "PREVIOUS", "LINEAR", "TRUE", "FALSE",
}

// Function describes an aggregate, selector or transform function.
type Function struct {
	Name        string
	Description string
}

// Functions is the function dictionary, ordered by how commonly they are used.
var Functions = []Function{
	{"COUNT", "Returns the number of non-null field values"},
	{"MEAN", "Returns the arithmetic average of field values"},
	{"SUM", "Returns the sum of field values"},
	{"MIN", "Returns the lowest field value"},
	{"MAX", "Returns the greatest field value"},
	{"FIRST", "Returns the field value with the oldest timestamp"},
	{"LAST", "Returns the field value with the most recent timestamp"},
	{"MEDIAN", "Returns the middle value from a sorted list of field values"},
	{"MODE", "Returns the most frequent value in a list of field values"},
	{"SPREAD", "Returns the difference between the minimum and maximum field values"},
	{"STDDEV", "Returns the standard deviation of field values"},
	{"DISTINCT", "Returns the list of unique field values"},
	{"INTEGRAL", "Returns the area under the curve for subsequent field values"},
	{"PERCENTILE", "Returns the Nth percentile field value"},
	{"TOP", "Returns the greatest N field values"},
	{"BOTTOM", "Returns the smallest N field values"},
	{"SAMPLE", "Returns a random sample of N field values"},
	{"DERIVATIVE", "Returns the rate of change between subsequent field values"},
	{"NON_NEGATIVE_DERIVATIVE", "Returns the non-negative rate of change between subsequent field values"},
	{"DIFFERENCE", "Returns the result of subtraction between subsequent field values"},
	{"NON_NEGATIVE_DIFFERENCE", "Returns the non-negative result of subtraction between subsequent field values"},
	{"MOVING_AVERAGE", "Returns the rolling average across a window of subsequent field values"},
	{"CUMULATIVE_SUM", "Returns the running total of subsequent field values"},
	{"ELAPSED", "Returns the difference between subsequent timestamps"},
	{"HOLT_WINTERS", "Returns N predicted field values using the Holt-Winters method"},
	{"ABS", "Returns the absolute value of the field value"},
	{"CEIL", "Returns the subsequent value rounded up to the nearest integer"},
	{"FLOOR", "Returns the subsequent value rounded down to the nearest integer"},
	{"ROUND", "Returns the subsequent value rounded to the nearest integer"},
	{"SQRT", "Returns the square root of the field value"},
	{"POW", "Returns the field value to the power of x"},
	{"EXP", "Returns the exponential of the field value"},
	{"LN", "Returns the natural logarithm of the field value"},
	{"LOG", "Returns the logarithm of the field value with base b"},
	{"LOG2", "Returns the logarithm of the field value to the base 2"},
	{"LOG10", "Returns the logarithm of the field value to the base 10"},
	{"SIN", "Returns the sine of the field value"},
	{"COS", "Returns the cosine of the field value"},
	{"TAN", "Returns the tangent of the field value"},
	{"ASIN", "Returns the arcsine of the field value"},
	{"ACOS", "Returns the arccosine of the field value"},
	{"ATAN", "Returns the arctangent of the field value"},
	{"ATAN2", "Returns the arctangent of y/x in radians"},
	{"NOW", "Returns the current server time"},
	{"TIME", "Groups results by time interval in GROUP BY"},
}

// Operator is a comparison or logical operator with a human readable description.
type Operator struct {
	Symbol      string
	Description string
}

// Operators is the fixed operator palette.
var Operators = []Operator{
	{"=", "Equal to"},
	{"!=", "Not equal to"},
	{"<>", "Not equal to"},
	{">", "Greater than"},
	{">=", "Greater than or equal to"},
	{"<", "Less than"},
	{"<=", "Less than or equal to"},
	{"=~", "Matches regular expression"},
	{"!~", "Does not match regular expression"},
	{"AND", "Both conditions must hold"},
	{"OR", "Either condition may hold"},
}

// ShowCommands is the palette of SHOW sub-commands.
var ShowCommands = []string{
	"DATABASES", "MEASUREMENTS", "SERIES", "FIELD KEYS", "TAG KEYS", "TAG VALUES",
	"RETENTION POLICIES", "CONTINUOUS QUERIES", "USERS",
}

var (
	keywordSet  = make(map[string]struct{})
	functionSet = make(map[string]struct{})
)

func init() {
	for _, kw := range Keywords {
		for _, part := range strings.Fields(kw) {
			keywordSet[part] = struct{}{}
		}
	}
	for _, fn := range Functions {
		functionSet[fn.Name] = struct{}{}
	}
}

// IsKeyword reports whether word (any case) is a reserved word. Multi-word
// keywords such as GROUP BY are recognized by their parts.
func IsKeyword(word string) bool {
	_, ok := keywordSet[strings.ToUpper(word)]
	return ok
}

// IsFunction reports whether word (any case) names a known function.
func IsFunction(word string) bool {
	_, ok := functionSet[strings.ToUpper(word)]
	return ok
}

// KeywordWords returns every single-word keyword, in dictionary order.
func KeywordWords() []string {
	seen := make(map[string]struct{}, len(keywordSet))
	var words []string
	for _, kw := range Keywords {
		for _, part := range strings.Fields(kw) {
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			words = append(words, part)
		}
	}
	return words
}

// FunctionNames returns the names of all functions in dictionary order.
func FunctionNames() []string {
	names := make([]string, len(Functions))
	for i, fn := range Functions {
		names[i] = fn.Name
	}
	return names
}

// LookupFunction returns the function named name (any case).
func LookupFunction(name string) (Function, bool) {
	upper := strings.ToUpper(name)
	for _, fn := range Functions {
		if fn.Name == upper {
			return fn, true
		}
	}
	return Function{}, false
}
