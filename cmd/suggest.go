package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cursorPos int

// suggestCmd prints ranked completions for a partial query.
var suggestCmd = &cobra.Command{
	Use:   "suggest [query]",
	Short: "Suggest completions for a partial query",
	Long:  "Print ranked completion candidates for a partial InfluxQL query. The query is read from the arguments, or from stdin when none are given or the argument is '-'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With(zap.String("command", "suggest"))

		query, err := readQuery(cmd, args)
		if err != nil {
			return err
		}
		cursor := cursorPos
		if cursor < 0 {
			cursor = len(query)
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		suggestions, err := s.service.GenerateSuggestions(cmd.Context(), profile, s.database, query, cursor)
		if err != nil {
			return err
		}
		log.Debug("Suggestions ready", zap.Int("count", len(suggestions)))

		return renderSuggestions(cmd.OutOrStdout(), outputFormat(), suggestions)
	},
}

// readQuery joins the arguments, or reads stdin when there are none or the
// only argument is "-". A trailing newline from stdin is dropped.
func readQuery(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func init() {
	suggestCmd.Flags().IntVar(&cursorPos, "cursor", -1, "byte offset of the cursor (default end of query)")
}
