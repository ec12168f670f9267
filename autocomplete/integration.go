package autocomplete

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/validator"
)

// maxDisplayed caps the rows shown in the suggestion box.
const maxDisplayed = 10

// AutocompleteHandler manages InfluxQL autocompletion integration with TUI
type AutocompleteHandler struct {
	service           *AutocompleteService
	suggestionBox     *tview.List
	inputField        *tview.InputField
	app               *tview.Application
	logger            *zap.Logger
	connID            string
	database          string
	suggestionVisible bool
	suggestions       []Suggestion
	suggestionsMutex  sync.RWMutex
	seq               atomic.Uint64

	// OnValidate, when set, receives the diagnostics of every text update.
	OnValidate func(validator.ValidationResult)
}

// NewAutocompleteHandler creates a new autocomplete handler for the TUI
func NewAutocompleteHandler(service *AutocompleteService, connID, database string, app *tview.Application,
	inputField *tview.InputField, logger *zap.Logger) *AutocompleteHandler {

	if logger == nil {
		logger = zap.NewNop()
	}

	suggestionBox := tview.NewList().
		ShowSecondaryText(true).
		SetHighlightFullLine(true).
		SetMainTextColor(tcell.ColorWhite).
		SetSelectedTextColor(tcell.ColorBlack).
		SetSelectedBackgroundColor(tcell.ColorAqua)

	return &AutocompleteHandler{
		service:       service,
		suggestionBox: suggestionBox,
		inputField:    inputField,
		app:           app,
		logger:        logger.With(zap.String("component", "autocomplete_handler")),
		connID:        connID,
		database:      database,
	}
}

// SuggestionBox returns the list widget showing suggestions.
func (ah *AutocompleteHandler) SuggestionBox() *tview.List {
	return ah.suggestionBox
}

// SetDatabase switches the database used for schema suggestions.
func (ah *AutocompleteHandler) SetDatabase(database string) {
	ah.suggestionsMutex.Lock()
	defer ah.suggestionsMutex.Unlock()
	ah.database = database
}

// ProcessKey handles keyboard input for autocompletion
func (ah *AutocompleteHandler) ProcessKey(event *tcell.EventKey) bool {
	if ah.suggestionVisible {
		switch event.Key() {
		case tcell.KeyDown:
			count := ah.suggestionBox.GetItemCount()
			if count > 0 {
				current := ah.suggestionBox.GetCurrentItem()
				if current < count-1 {
					ah.suggestionBox.SetCurrentItem(current + 1)
				}
			}
			return true
		case tcell.KeyUp:
			if ah.suggestionBox.GetItemCount() > 0 {
				current := ah.suggestionBox.GetCurrentItem()
				if current > 0 {
					ah.suggestionBox.SetCurrentItem(current - 1)
				}
			}
			return true
		case tcell.KeyEnter, tcell.KeyTab:
			if ah.suggestionBox.GetItemCount() > 0 {
				ah.acceptSuggestion(ah.suggestionBox.GetCurrentItem())
			}
			return true
		case tcell.KeyEscape:
			ah.HideSuggestions()
			return true
		}
	}

	if (event.Key() == tcell.KeyTab || event.Key() == tcell.KeyCtrlSpace) && !ah.suggestionVisible {
		ah.ShowSuggestions()
		return true
	}

	return false
}

// Update should be called when the input text changes. Results of an
// update are dropped when a newer update has started.
func (ah *AutocompleteHandler) Update(text string, cursorPos int) {
	seq := ah.seq.Add(1)

	ah.suggestionsMutex.RLock()
	database := ah.database
	ah.suggestionsMutex.RUnlock()

	go func() {
		suggestions, err := ah.service.GenerateSuggestions(context.Background(), ah.connID, database, text, cursorPos)
		if err != nil {
			ah.logger.Error("Failed to get completions", zap.Error(err))
			return
		}
		result := ah.service.Validate(text)

		if ah.seq.Load() != seq {
			return
		}

		ah.suggestionsMutex.Lock()
		ah.suggestions = suggestions
		ah.suggestionsMutex.Unlock()

		ah.app.QueueUpdateDraw(func() {
			if ah.seq.Load() != seq {
				return
			}
			if ah.suggestionVisible {
				ah.updateSuggestionBox()
			}
			if ah.OnValidate != nil {
				ah.OnValidate(result)
			}
		})
	}()
}

// ShowSuggestions displays the suggestion box
func (ah *AutocompleteHandler) ShowSuggestions() {
	ah.updateSuggestionBox()

	if ah.suggestionBox.GetItemCount() > 0 {
		ah.suggestionVisible = true
		ah.app.SetFocus(ah.suggestionBox)
	}
}

// HideSuggestions hides the suggestion box
func (ah *AutocompleteHandler) HideSuggestions() {
	if !ah.suggestionVisible {
		return
	}

	ah.suggestionVisible = false
	ah.app.SetFocus(ah.inputField)
}

func (ah *AutocompleteHandler) updateSuggestionBox() {
	ah.suggestionBox.Clear()

	ah.suggestionsMutex.RLock()
	defer ah.suggestionsMutex.RUnlock()

	for i, suggestion := range ah.suggestions {
		if i >= maxDisplayed {
			break
		}
		secondary := string(suggestion.Type)
		if suggestion.Description != "" {
			secondary = fmt.Sprintf("%s: %s", suggestion.Type, suggestion.Description)
		}
		ah.suggestionBox.AddItem(suggestion.Label, secondary, 0, nil)
	}
}

func (ah *AutocompleteHandler) acceptSuggestion(index int) {
	ah.suggestionsMutex.RLock()
	if index < 0 || index >= len(ah.suggestions) {
		ah.suggestionsMutex.RUnlock()
		return
	}
	suggestion := ah.suggestions[index]
	ah.suggestionsMutex.RUnlock()

	text := ah.inputField.GetText()
	newText, _ := ApplySuggestion(text, len(text), suggestion)
	ah.inputField.SetText(newText)

	ah.HideSuggestions()
}

var (
	snippetPlaceholder = regexp.MustCompile(`\$\{\d+:([^}]*)\}`)
	snippetTabStop     = regexp.MustCompile(`\$\d+`)
)

// ApplySuggestion replaces the token before cursor with the suggestion's
// insert text and returns the new text and cursor. Snippet placeholders are
// replaced by their default text. Keywords are followed by a space, and the
// cursor of an inserted call is placed between its parentheses.
func ApplySuggestion(text string, cursor int, s Suggestion) (string, int) {
	cursor = clampCursor(text, cursor)
	start := cursor - len(CurrentTokenAt(text, cursor))

	insert := s.InsertText
	if insert == "" {
		insert = s.Label
	}
	if s.IsSnippet {
		insert = snippetPlaceholder.ReplaceAllString(insert, "$1")
		insert = snippetTabStop.ReplaceAllString(insert, "")
	}

	after := text[cursor:]
	if s.Type == TypeKeyword && (after == "" || after[0] != ' ') {
		insert += " "
	}

	newCursor := start + len(insert)
	if s.Type == TypeFunction && len(insert) >= 2 && insert[len(insert)-2:] == "()" {
		newCursor--
	}
	return text[:start] + insert + after, newCursor
}

// IntegrateWithTUI wires an autocomplete handler into the TUI. The suggestion
// box is added to flex and the input field's changes drive updates.
func IntegrateWithTUI(app *tview.Application, input *tview.InputField, flex *tview.Flex,
	service *AutocompleteService, connID, database string, logger *zap.Logger) *AutocompleteHandler {

	handler := NewAutocompleteHandler(service, connID, database, app, input, logger)

	flex.AddItem(handler.suggestionBox, maxDisplayed, 0, false)

	input.SetChangedFunc(func(text string) {
		handler.Update(text, len(text))
	})

	originalInputCapture := app.GetInputCapture()
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if handler.ProcessKey(event) {
			return nil
		}
		if originalInputCapture != nil {
			return originalInputCapture(event)
		}
		return event
	})

	return handler
}
