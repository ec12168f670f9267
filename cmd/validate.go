package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/config"
	"github.com/TFMV/influx-assist/validator"
)

// validateCmd checks a query and exits non-zero when it has errors.
var validateCmd = &cobra.Command{
	Use:   "validate [query]",
	Short: "Validate a query",
	Long:  "Check an InfluxQL query for syntax errors, likely typos, semantic omissions and performance hazards. The query is read from the arguments, or from stdin when none are given or the argument is '-'.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With(zap.String("command", "validate"))

		query, err := readQuery(cmd, args)
		if err != nil {
			return err
		}

		v, err := validator.New(config.AppConfig.ValidatorOptions(), logger)
		if err != nil {
			return fmt.Errorf("invalid validator configuration: %w", err)
		}

		result := v.Validate(query)
		log.Debug("Validation finished",
			zap.Int("errors", len(result.Errors)),
			zap.Int("warnings", len(result.Warnings)),
			zap.Int("suggestions", len(result.Suggestions)))

		if err := renderValidation(cmd.OutOrStdout(), outputFormat(), result); err != nil {
			return err
		}
		if !result.IsValid {
			return fmt.Errorf("query has %d error(s)", len(result.Errors))
		}
		return nil
	},
}
