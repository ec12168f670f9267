package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/autocomplete"
	"github.com/TFMV/influx-assist/config"
	"github.com/TFMV/influx-assist/schema"
	"github.com/TFMV/influx-assist/ui"
	"github.com/TFMV/influx-assist/validator"
)

var (
	cfgFile  string
	profile  string
	database string
	output   string
	verbose  bool
	logger   = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "influx-assist",
	Short: "InfluxQL completion and validation tool",
	Long:  `Context-aware autocompletion and multi-pass validation for InfluxQL queries, backed by a cached view of your InfluxDB schema.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}
		return initConfig()
	},
	// Without a subcommand launch the interactive editor.
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newSession()
		if err != nil {
			return err
		}
		defer svc.Close()

		return ui.StartInteractive(svc.service, svc.lookup, profile, svc.database, svc.refreshInterval, logger)
	},
}

// Execute initializes and executes the root command.
func Execute() {
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(cacheCmd)

	err := rootCmd.Execute()
	if err != nil {
		logger.Debug("Command execution error", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.influx-assist.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "default", "connection profile used for schema lookups")
	rootCmd.PersistentFlags().StringVarP(&database, "database", "d", "", "database whose schema is suggested (default from config)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "output format: table or json (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initLogger() error {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

func initConfig() error {
	// An explicit --config must exist; the default file is optional.
	if cfgFile != "" {
		return config.LoadConfig(cfgFile)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("unable to find home directory: %v", err)
	}
	path := filepath.Join(home, ".influx-assist.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("No config file, using defaults", zap.String("path", path))
		return nil
	}
	return config.LoadConfig(path)
}

// session bundles the service of one command invocation with the resources
// it owns.
type session struct {
	service         *autocomplete.AutocompleteService
	lookup          schema.Lookup
	database        string
	refreshInterval time.Duration

	sqlLookup *schema.SQLLookup
	store     *schema.Store
}

// newSession builds the assistance service from the loaded configuration.
// A missing profile or an unavailable snapshot store only degrades it.
func newSession() (*session, error) {
	cfg := &config.AppConfig
	log := logger.With(zap.String("profile", profile))

	v, err := validator.New(cfg.ValidatorOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("invalid validator configuration: %w", err)
	}

	s := &session{database: database}
	if s.database == "" {
		s.database = cfg.Defaults.Database
	}
	if s.refreshInterval, err = cfg.RefreshInterval(); err != nil {
		return nil, err
	}

	opts := []autocomplete.Option{autocomplete.WithMaxSuggestions(cfg.Defaults.MaxSuggestions)}
	if dir, err := cfg.CacheDir(); err != nil {
		log.Warn("Schema snapshots disabled", zap.Error(err))
	} else if s.store, err = schema.OpenStore(dir, logger); err != nil {
		log.Warn("Schema snapshots disabled", zap.Error(err))
	} else {
		opts = append(opts, autocomplete.WithStore(s.store))
	}

	if p, err := cfg.Profile(profile); err != nil {
		log.Info("Schema lookups disabled", zap.Error(err))
	} else if s.sqlLookup, err = autocomplete.OpenLookup(p, profile, logger); err != nil {
		log.Warn("Schema lookups disabled", zap.Error(err))
	} else {
		s.lookup = s.sqlLookup
	}

	s.service = autocomplete.NewAutocompleteService(s.lookup, v, logger, opts...)
	return s, nil
}

// Close releases the lookup connections and the snapshot store.
func (s *session) Close() {
	if s.sqlLookup != nil {
		if err := s.sqlLookup.Close(); err != nil {
			logger.Warn("Failed to close schema lookup", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logger.Warn("Failed to close schema snapshot store", zap.Error(err))
		}
	}
}

// outputFormat returns the --output flag or the configured default.
func outputFormat() string {
	if output != "" {
		return output
	}
	return config.AppConfig.Defaults.Format
}
