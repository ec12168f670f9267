package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/TFMV/influx-assist/autocomplete"
	"github.com/TFMV/influx-assist/validator"
)

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	return table
}

func renderSuggestions(w io.Writer, format string, suggestions []autocomplete.Suggestion) error {
	if format == "json" {
		return writeJSON(w, suggestions)
	}

	table := newTable(w, "Label", "Type", "Priority", "Insert", "Description")
	for _, s := range suggestions {
		table.Append([]string{s.Label, string(s.Type), strconv.Itoa(s.Priority), s.InsertText, s.Description})
	}
	table.Render()
	return nil
}

func renderValidation(w io.Writer, format string, result validator.ValidationResult) error {
	if format == "json" {
		return writeJSON(w, result)
	}

	all := result.All()
	if len(all) == 0 {
		_, err := fmt.Fprintln(w, "No problems found.")
		return err
	}

	table := newTable(w, "Position", "Severity", "Code", "Message", "Quick Fix")
	for _, d := range all {
		fix := ""
		if d.QuickFix != nil {
			fix = d.QuickFix.Title
		}
		table.Append([]string{d.Position(), string(d.Severity), d.Code, d.Message, fix})
	}
	table.Render()
	return nil
}
