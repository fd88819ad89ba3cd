// =============================================================================
// Weight Merge - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the merge
// profiles that describe how a particular pair of exports is read.
//
// CONFIGURATION SOURCES (highest precedence first):
//   1. Environment variables prefixed with WEIGHTMERGE_
//      (nested keys use "_", e.g. WEIGHTMERGE_SERVER_ADDR)
//   2. The main config file (config.yaml), when present
//   3. Built-in defaults
//
// Profiles live in their own directory (profiles/*.yaml); see profile.go.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ginjaninja78/weight-merge/pkg/utils"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "WEIGHTMERGE"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Main holds the global application configuration.
type Main struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned by the batch command for sales exports.
	// Default: "./input"
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	// OutputDir receives merged reports.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// InputArchiveDir receives sales exports after a successful batch merge
	// when ArchiveInputs is set.
	// Default: "./input_archive"
	InputArchiveDir string `mapstructure:"input_archive_dir" yaml:"input_archive_dir"`

	// ProfilesDir holds the merge profile files.
	// Default: "./profiles"
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional log file. Console logging is always on.
	// Default: "" (console only)
	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat is the template for report file names.
	// Placeholders:
	//   {timestamp} - run time as YYYYMMDD_HHMMSS
	//   {uuid}      - a random UUID
	//   {profile}   - the profile name
	//   {format}    - the output format extension
	// Default: "final_merged_{timestamp}.{format}"
	OutputNameFormat string `mapstructure:"output_name_format" yaml:"output_name_format"`

	// DefaultFormat is used when no --format flag is given.
	// Valid values: "xlsx", "csv", "sqlite"
	// Default: "xlsx"
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format"`

	// CSVPrecision rounds weight columns in CSV output to this many decimal
	// places. A negative value writes full precision.
	// Default: -1
	CSVPrecision int `mapstructure:"csv_precision" yaml:"csv_precision"`

	// ArchiveInputs moves sales exports to InputArchiveDir after a
	// successful batch merge.
	// Default: false
	ArchiveInputs bool `mapstructure:"archive_inputs" yaml:"archive_inputs"`

	// ArchiveTimestampSubdirs archives into dated subdirectories, e.g.
	// input_archive/2024/01/15/sales.csv.
	// Default: false
	ArchiveTimestampSubdirs bool `mapstructure:"archive_timestamp_subdirs" yaml:"archive_timestamp_subdirs"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	Server Server `mapstructure:"server" yaml:"server"`
}

// Server configures the HTTP front end.
type Server struct {
	// Addr is the listen address.
	// Default: ":8080"
	Addr string `mapstructure:"addr" yaml:"addr"`

	// MaxUploadMB caps the size of one merge request.
	// Default: 32
	MaxUploadMB int64 `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the main configuration.
//
// PARAMETERS:
//   - cfgFile: an explicit config file. When empty, config.yaml is looked up
//     in the working directory and is optional.
//
// RETURNS:
//   - The merged configuration (defaults, file, environment).
//   - An error if an explicit file cannot be read, or the result is invalid.
func Load(cfgFile string) (*Main, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var c Main
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &c, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Main {
	v := viper.New()
	setDefaults(v)
	var c Main
	// Defaults always decode.
	_ = v.Unmarshal(&c)
	return &c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "./input")
	v.SetDefault("output_dir", "./output")
	v.SetDefault("input_archive_dir", "./input_archive")
	v.SetDefault("profiles_dir", "./profiles")
	v.SetDefault("log_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("output_name_format", "final_merged_{timestamp}.{format}")
	v.SetDefault("default_format", "xlsx")
	v.SetDefault("csv_precision", -1)
	v.SetDefault("archive_inputs", false)
	v.SetDefault("archive_timestamp_subdirs", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 32)
}

// Validate checks values that cannot be repaired by defaults.
func (c *Main) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	switch strings.ToLower(c.DefaultFormat) {
	case "xlsx", "csv", "sqlite":
	default:
		return fmt.Errorf("unknown default_format %q (want xlsx, csv or sqlite)", c.DefaultFormat)
	}
	if c.OutputNameFormat == "" {
		return errors.New("output_name_format must not be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	return nil
}

// FileManager returns a file manager over the configured directories. The
// archive directory is only set when ArchiveInputs is on, so it is not
// created otherwise.
func (c *Main) FileManager() *utils.FileManager {
	archive := ""
	if c.ArchiveInputs {
		archive = c.InputArchiveDir
	}
	fm := utils.NewFileManager(c.InputDir, c.OutputDir, archive)
	fm.UseTimestampSubdirs = c.ArchiveTimestampSubdirs
	return fm
}
