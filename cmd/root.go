// =============================================================================
// Weight Merge - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// hangs off it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (weightmerge)
//   ├── mergeCmd    (weightmerge merge)
//   ├── batchCmd    (weightmerge batch)
//   ├── validateCmd (weightmerge validate)
//   ├── serveCmd    (weightmerge serve)
//   └── versionCmd  (weightmerge version)
//
// STARTUP:
//   Before any subcommand runs, the root command:
//   1. Loads the main configuration (file, WEIGHTMERGE_* environment, defaults)
//   2. Loads the merge profiles
//   3. Builds the logger
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/weight-merge/internal/config"
	"github.com/ginjaninja78/weight-merge/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile is the main configuration file. When empty, ./config.yaml is used
// if it exists.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// Loaded at startup by loadRuntime.
var (
	appConfig *config.Main
	profiles  []*config.Profile
	log       *zap.SugaredLogger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "weightmerge",
	Short: "Weight Merge - Annotate sales exports with product shipping weights",
	Long: `Weight Merge joins a sales export with a per-product unit weight reference
and produces a report of every sale with its total weight in pounds and short
tons, newest sales first.

Key Features:
  - CSV (any common delimiter and encoding) and XLSX inputs
  - Header normalization and per-source column aliases via profiles
  - Row validation with per-reason rejection counts
  - XLSX reports with a date and location filter banner, CSV or SQLite output
  - Batch processing of an input directory and an HTTP upload endpoint

Example Usage:
  weightmerge merge --sales sales.xlsx --weights weights.csv
  weightmerge merge --sales sales.csv --weights weights.csv --format csv --out report.csv
  weightmerge batch --weights weights.csv
  weightmerge serve --addr :8080`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadRuntime()
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the main configuration file (default ./config.yaml if present)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// loadRuntime loads configuration, profiles and the logger.
func loadRuntime() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appConfig = c

	level := c.LogLevel
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, c.LogFile)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	log = l

	p, err := config.LoadProfiles(c.ProfilesDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	profiles = p
	log.Debugf("loaded %d profile(s) from %s", len(profiles), c.ProfilesDir)
	for _, prof := range profiles {
		for _, w := range prof.Warnings() {
			log.Warnf("profile %s: %s", prof.Name, w)
		}
	}
	return nil
}
