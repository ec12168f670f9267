package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/autocomplete"
	"github.com/TFMV/influx-assist/schema"
)

var errNoDatabase = errors.New("no database selected: use --database or set defaults.database")

// schemaCmd is the parent command for schema-related operations.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema management commands",
	Long:  "Explore and refresh the cached InfluxDB schema used for suggestions.",
}

// schemaListCmd lists measurements with their field and tag keys.
var schemaListCmd = &cobra.Command{
	Use:   "list [pattern]",
	Short: "List measurements of a database",
	Long:  "List the measurements of the selected database with their field and tag keys, filtered and ordered by an optional pattern.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()
		if s.database == "" {
			return errNoDatabase
		}
		log := logger.With(zap.String("command", "schema list"), zap.String("database", s.database))

		cache := s.service.Cache()
		if err := cache.EnsureLoaded(cmd.Context(), s.lookup, profile, s.database); err != nil {
			log.Warn("Listing without schema", zap.Error(err))
		}
		measurements, err := cache.Measurements(s.database)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			measurements = schema.MatchIdentifiers(args[0], measurements)
		}

		if outputFormat() == "json" {
			out := make(map[string]schema.MeasurementSchema, len(measurements))
			for _, m := range measurements {
				out[m], _ = cache.Measurement(s.database, m)
			}
			return writeJSON(cmd.OutOrStdout(), out)
		}

		table := newTable(cmd.OutOrStdout(), "Measurement", "Fields", "Tags")
		for _, m := range measurements {
			ms, _ := cache.Measurement(s.database, m)
			fields := make([]string, len(ms.Fields))
			for i, f := range ms.Fields {
				fields[i] = fmt.Sprintf("%s (%s)", f.Name, f.Type)
			}
			tags := make([]string, len(ms.Tags))
			for i, t := range ms.Tags {
				tags[i] = t.Name
			}
			table.Append([]string{m, strings.Join(fields, ", "), strings.Join(tags, ", ")})
		}
		table.Render()
		return nil
	},
}

// schemaRefreshCmd re-fetches a database and saves the snapshot.
var schemaRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-fetch the schema of a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()
		if s.database == "" {
			return errNoDatabase
		}
		if s.lookup == nil {
			return fmt.Errorf("profile %q has no usable connection", profile)
		}

		if err := autocomplete.FetchAndCacheSchema(cmd.Context(), s.service, s.lookup, profile, s.database); err != nil {
			return err
		}
		measurements, _ := s.service.Cache().Measurements(s.database)
		fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s: %d measurements\n", s.database, len(measurements))
		return nil
	},
}

// schemaDatabasesCmd lists the databases visible to the profile.
var schemaDatabasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		cache := s.service.Cache()
		if err := cache.EnsureDatabases(cmd.Context(), s.lookup, profile); err != nil {
			return err
		}
		databases, err := cache.Databases(profile)
		if err != nil {
			return err
		}

		if outputFormat() == "json" {
			return writeJSON(cmd.OutOrStdout(), databases)
		}
		table := newTable(cmd.OutOrStdout(), "Database")
		for _, db := range databases {
			table.Append([]string{db})
		}
		table.Render()
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaRefreshCmd)
	schemaCmd.AddCommand(schemaDatabasesCmd)
}
