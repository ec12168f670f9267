package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cacheCmd is the parent command for cache-related operations.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  "Manage the schema snapshots stored in SQLite under the cache directory.",
}

// cacheListCmd lists the databases held in the snapshot store.
var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists cached databases",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.With(zap.String("command", "cache list"))

		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		cache := s.service.Cache()
		databases := cache.CachedDatabases()
		sort.Strings(databases)
		if len(databases) == 0 {
			log.Debug("No cached schema found")
			fmt.Fprintln(cmd.OutOrStdout(), "No cached schema found.")
			return nil
		}

		table := newTable(cmd.OutOrStdout(), "Database", "Measurements")
		for _, db := range databases {
			measurements, _ := cache.Measurements(db)
			table.Append([]string{db, strconv.Itoa(len(measurements))})
		}
		table.Render()
		return nil
	},
}

// cacheClearCmd drops every cached schema snapshot.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clears cached schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()

		s.service.ClearCache()
		fmt.Fprintln(cmd.OutOrStdout(), "Schema cache cleared.")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
