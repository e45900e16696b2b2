package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/tardis-cli/internal/config"
	"github.com/KaramelBytes/tardis-cli/internal/dataset"
	"github.com/KaramelBytes/tardis-cli/internal/engine"
	"github.com/KaramelBytes/tardis-cli/internal/features"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Source flags (override config if set)
	flagDataset   string
	flagModel     string
	flagModelInfo string

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "tardis",
	Short: "TARDIS: rail delay analytics and prediction",
	Long: `TARDIS loads a history of rail trips, answers delay analytics over filtered views of it
and predicts the arrival delay of a route with a pre-trained model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.tardis/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDataset, "dataset", "", "dataset file: .csv, .tsv, .xlsx or SQLite .db (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model artifact file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagModelInfo, "model-info", "", "model metadata file (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c
}

// ensureConfig loads the configuration when OnInitialize did not.
func ensureConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func engineOptions() (engine.Options, error) {
	if err := ensureConfig(); err != nil {
		return engine.Options{}, err
	}
	scope, err := features.ParseScope(cfg.FallbackScope)
	if err != nil {
		return engine.Options{}, err
	}
	opts := engine.Options{
		DatasetPath: cfg.DatasetPath,
		Dataset: dataset.Options{
			Delimiter: cfg.DelimiterRune(),
			Sheet:     cfg.DatasetSheet,
			Table:     cfg.DatasetTable,
			MaxRows:   cfg.MaxRows,
			Number:    dataset.NumberFormat{DecimalSeparator: cfg.DecimalRune()},
		},
		ModelPath:      cfg.ModelPath,
		ModelInfoPath:  cfg.ModelInfoPath,
		TopImportances: cfg.ImportanceTopN,
		Scope:          scope,
	}
	if flagDataset != "" {
		opts.DatasetPath = flagDataset
	}
	if flagModel != "" {
		opts.ModelPath = flagModel
	}
	if flagModelInfo != "" {
		opts.ModelInfoPath = flagModelInfo
	}
	return opts, nil
}

// openEngine builds the engine from config and flags and loads both sources.
// Load failures are reported as warnings; callers ask the engine for what they need.
func openEngine(cmd *cobra.Command, needModel bool) (*engine.Engine, error) {
	opts, err := engineOptions()
	if err != nil {
		return nil, err
	}
	eng := engine.New(opts)
	st := eng.Load()
	reportStatus(cmd, st, needModel)
	return eng, nil
}

func reportStatus(cmd *cobra.Command, st engine.Status, needModel bool) {
	errOut := cmd.ErrOrStderr()
	if rep := st.Dataset; rep != nil {
		if rep.Rejected > 0 {
			fmt.Fprintf(errOut, "⚠ Warning: %d of %d rows rejected while loading %s\n", rep.Rejected, rep.Rows, rep.Name)
		}
		if debug {
			fmt.Fprintf(errOut, "[DEBUG] dataset %s: %d loaded, %d without date\n", rep.Name, rep.Loaded, rep.MissingDates)
			for _, w := range rep.Warnings {
				fmt.Fprintf(errOut, "[DEBUG] %s\n", w)
			}
		}
	}
	if needModel && st.ModelError != "" && debug {
		fmt.Fprintf(errOut, "[DEBUG] model: %s\n", st.ModelError)
	}
}
