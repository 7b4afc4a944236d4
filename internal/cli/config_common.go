package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pgready/internal/config"
	"github.com/vvka-141/pgready/internal/db"
	"github.com/vvka-141/pgready/internal/envcheck"
	"github.com/vvka-141/pgready/internal/logging"
	"github.com/vvka-141/pgready/internal/tui"
	"github.com/vvka-141/pgready/pkg/pgready"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
)

// environmentFlags are shared by every command that reads the application environment.
type environmentFlags struct {
	production bool
	configPath string
	envFiles   []string
}

func registerEnvironmentFlags(cmd *cobra.Command, f *environmentFlags) {
	cmd.Flags().BoolVar(&f.production, "production", false,
		"Apply production rules (also enabled by PGREADY_ENV, APP_ENV or NODE_ENV=production)")
	cmd.Flags().StringVar(&f.configPath, "config", "",
		"Path to pgready.yaml (default: ./pgready.yaml when present)")
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", nil,
		"Validate the variables in these .env files instead of ./.env\n"+
			"Values in the files take precedence over the process environment.\n"+
			"Repeat the flag to layer files; later files win.")
}

// loadProjectConfig reads the project file. A missing default file is not an
// error; a missing explicit --config path is.
func loadProjectConfig(path string, verbose bool) (*config.ProjectConfig, error) {
	var (
		cfg *config.ProjectConfig
		err error
	)
	if path == "" {
		cfg, err = config.Load(".")
		if errors.Is(err, config.ErrConfigNotFound) {
			if verbose {
				fmt.Fprintf(os.Stderr, "[VERBOSE] No %s found, using defaults\n", config.ConfigFileName)
			}
			return &config.ProjectConfig{}, nil
		}
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w: %w", err, pgready.ErrInvalidConfig)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Loaded %s\n", firstNonEmpty(path, filepath.Join(".", config.ConfigFileName)))
	}
	return cfg, nil
}

// buildLookup returns the variable source to validate. Without --env-file the
// ./.env file is loaded into the process environment first.
func buildLookup(envFiles []string, verbose bool) (envcheck.Lookup, error) {
	if len(envFiles) == 0 {
		if err := envcheck.LoadDotEnv(); err != nil {
			return nil, err
		}
		return envcheck.OSLookup(), nil
	}

	fileLookup, err := envcheck.ReadDotEnv(envFiles...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, pgready.ErrInvalidConfig)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Reading variables from %v\n", envFiles)
	}
	return envcheck.Chain(fileLookup, envcheck.OSLookup()), nil
}

// resolveProduction: --production > pgready.yaml environment > environment variables.
func resolveProduction(flag bool, cfg *config.ProjectConfig, lookup envcheck.Lookup) bool {
	if flag {
		return true
	}
	if cfg != nil && cfg.Environment != "" {
		return db.IsProductionEnv(cfg.Environment)
	}
	return envcheck.DetectProduction(lookup)
}

// newDiagnosticLogger builds the ring buffer logger. The console stays quiet
// (warnings and up) unless verbose; it is disabled while a spinner owns stderr.
func newDiagnosticLogger(cfg *config.ProjectConfig, production, verbose bool) (*logging.Logger, error) {
	level := pgready.LevelWarn
	if cfg.Logging.Level != "" {
		parsed, err := pgready.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logging.level: %w: %w", err, pgready.ErrInvalidConfig)
		}
		level = parsed
	}
	if verbose {
		level = pgready.LevelDebug
	}

	opts := []logging.Option{
		logging.WithProduction(production),
		logging.WithConsoleLevel(level),
		logging.WithNoColor(os.Getenv("NO_COLOR") != ""),
	}
	if cfg.Logging.Capacity > 0 {
		opts = append(opts, logging.WithCapacity(cfg.Logging.Capacity))
	}
	if tui.IsInteractive() && !verbose {
		opts = append(opts, logging.WithConsole(nil))
	}
	return logging.New(opts...), nil
}

func validateOutputFormat(output string) error {
	switch output {
	case outputText, outputJSON:
		return nil
	}
	return fmt.Errorf("invalid argument %q for --output: must be %s or %s", output, outputText, outputJSON)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
