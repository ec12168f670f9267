package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/autocomplete"
	"github.com/TFMV/influx-assist/schema"
	"github.com/TFMV/influx-assist/validator"
)

// StartInteractive launches an interactive InfluxQL editor with completion
// and live diagnostics. It blocks until the user exits.
func StartInteractive(service *autocomplete.AutocompleteService, lookup schema.Lookup, profile, database string,
	refreshInterval time.Duration, logger *zap.Logger) error {

	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "tui"), zap.String("profile", profile))
	log.Info("Starting interactive mode", zap.String("database", database))

	if lookup != nil && refreshInterval > 0 {
		refresher := autocomplete.StartSchemaUpdater(service, lookup, profile, refreshInterval, log)
		defer refresher.Stop()
	}

	app := tview.NewApplication()
	queryHistory := []string{}
	historyIndex := -1
	var historyLock sync.Mutex

	input := tview.NewInputField().
		SetLabel("InfluxQL> ").
		SetFieldWidth(0)

	diagnostics := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true).
		SetText("Welcome to influx-assist. Type a query, press [yellow]Tab[white] or [yellow]Ctrl+Space[white] for suggestions and [green]Enter[white] to check it.")
	diagnostics.SetBorder(true).SetTitle(" Diagnostics ").SetTitleAlign(tview.AlignLeft)

	statusBar := tview.NewTextView().
		SetDynamicColors(true).
		SetText(statusText(database, "[yellow]Ready"))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true)

	// Keyboard shortcuts. The autocomplete handler wraps this capture and
	// sees every key first.
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp:
			historyLock.Lock()
			if historyIndex > 0 {
				historyIndex--
				input.SetText(queryHistory[historyIndex])
				log.Debug("History navigation", zap.String("direction", "up"), zap.Int("index", historyIndex))
			}
			historyLock.Unlock()
			return nil
		case tcell.KeyDown:
			historyLock.Lock()
			if historyIndex < len(queryHistory)-1 {
				historyIndex++
				input.SetText(queryHistory[historyIndex])
				log.Debug("History navigation", zap.String("direction", "down"), zap.Int("index", historyIndex))
			} else {
				input.SetText("")
			}
			historyLock.Unlock()
			return nil
		case tcell.KeyEscape:
			input.SetText("")
			log.Debug("Input cleared")
			return nil
		case tcell.KeyCtrlC:
			log.Info("User initiated application exit")
			app.Stop()
			return nil
		}
		return event
	})

	handler := autocomplete.IntegrateWithTUI(app, input, flex, service, profile, database, log)
	handler.OnValidate = func(result validator.ValidationResult) {
		diagnostics.SetText(FormatDiagnostics(result))
	}

	flex.AddItem(diagnostics, 0, 1, false).
		AddItem(statusBar, 1, 0, false)

	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}

		query := input.GetText()
		if strings.TrimSpace(query) == "" {
			return
		}

		historyLock.Lock()
		queryHistory = append(queryHistory, query)
		historyIndex = len(queryHistory)
		historyLock.Unlock()

		result := service.Validate(query)
		log.Info("Validated query",
			zap.Bool("valid", result.IsValid),
			zap.Int("errors", len(result.Errors)),
			zap.Int("warnings", len(result.Warnings)))

		diagnostics.SetText(FormatDiagnostics(result))
		if result.IsValid {
			statusBar.SetText(statusText(database, "[green]Query is valid"))
		} else {
			statusBar.SetText(statusText(database, fmt.Sprintf("[red]%d error(s)", len(result.Errors))))
		}
	})

	log.Info("TUI application starting")
	if err := app.SetRoot(flex, true).Run(); err != nil {
		log.Error("Application crashed", zap.Error(err))
		return fmt.Errorf("interactive mode failed: %w", err)
	}
	log.Info("TUI application closed")
	return nil
}

func statusText(database, state string) string {
	if database == "" {
		database = "(none)"
	}
	return fmt.Sprintf("[white]db: [aqua]%s[white] | %s", database, state)
}

var severityColors = map[validator.Severity]string{
	validator.SeverityError:   "red",
	validator.SeverityWarning: "yellow",
	validator.SeverityInfo:    "aqua",
}

// FormatDiagnostics renders a validation result for a dynamic-color text view.
func FormatDiagnostics(result validator.ValidationResult) string {
	all := result.All()
	if len(all) == 0 {
		return "[green]No problems found."
	}

	var b strings.Builder
	for i, d := range all {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s]%-7s[white] %s %s: %s",
			severityColors[d.Severity], d.Severity, d.Position(), d.Code, tview.Escape(d.Message))
		if d.QuickFix != nil {
			fmt.Fprintf(&b, " [gray](%s)[white]", tview.Escape(d.QuickFix.Title))
		}
	}
	return b.String()
}
