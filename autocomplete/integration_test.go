package autocomplete

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySuggestion(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		cursor     int
		suggestion Suggestion
		wantText   string
		wantCursor int
	}{
		{
			name:       "keyword prefix",
			text:       "SELEC",
			cursor:     5,
			suggestion: Suggestion{Label: "SELECT", InsertText: "SELECT", Type: TypeKeyword},
			wantText:   "SELECT ",
			wantCursor: 7,
		},
		{
			name:       "measurement after space",
			text:       "SELECT * FROM ",
			cursor:     14,
			suggestion: Suggestion{Label: "cpu", InsertText: "cpu", Type: TypeMeasurement},
			wantText:   "SELECT * FROM cpu",
			wantCursor: 17,
		},
		{
			name:       "function call",
			text:       "SELECT me",
			cursor:     9,
			suggestion: Suggestion{Label: "MEAN", InsertText: "MEAN()", Type: TypeFunction, IsSnippet: true},
			wantText:   "SELECT MEAN()",
			wantCursor: 12,
		},
		{
			name:       "snippet placeholder",
			text:       "SELECT ",
			cursor:     7,
			suggestion: Suggestion{Label: "SELECT * FROM", InsertText: "* FROM ${1:measurement}", Type: TypeTemplate, IsSnippet: true},
			wantText:   "SELECT * FROM measurement",
			wantCursor: 25,
		},
		{
			name:       "middle of text",
			text:       "SELECT us FROM cpu",
			cursor:     9,
			suggestion: Suggestion{Label: "usage", InsertText: "usage", Type: TypeField},
			wantText:   "SELECT usage FROM cpu",
			wantCursor: 12,
		},
		{
			name:       "keyword before existing space",
			text:       "SELECT * FR cpu",
			cursor:     11,
			suggestion: Suggestion{Label: "FROM", InsertText: "FROM", Type: TypeKeyword},
			wantText:   "SELECT * FROM cpu",
			wantCursor: 13,
		},
		{
			name:       "empty insert text uses label",
			text:       "SELECT * FROM cpu WHERE h",
			cursor:     25,
			suggestion: Suggestion{Label: "host", Type: TypeTag},
			wantText:   "SELECT * FROM cpu WHERE host",
			wantCursor: 28,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, cursor := ApplySuggestion(tt.text, tt.cursor, tt.suggestion)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantCursor, cursor)
		})
	}
}

func TestApplySuggestionClampsCursor(t *testing.T) {
	text, cursor := ApplySuggestion("SEL", 99, Suggestion{Label: "SELECT", InsertText: "SELECT", Type: TypeKeyword})
	assert.Equal(t, "SELECT ", text)
	assert.Equal(t, 7, cursor)
}
