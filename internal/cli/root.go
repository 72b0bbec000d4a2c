package cli

import (
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ambiyansyah-risyal/wapi"
)

const (
	FlagConfig  = "config"
	FlagBaseURL = "base-url"
	FlagTimeout = "timeout"
	FlagDebug   = "debug"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := New().Execute(); err != nil {
		os.Exit(1)
	}
}

// New returns the wapi root command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wapi [sub-command]",
		Short: "Issue requests through the wapi client and inspect the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	registerClientFlags(cmd.PersistentFlags())

	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func registerClientFlags(flags *pflag.FlagSet) {
	flags.String(FlagConfig, "", "path to a YAML client configuration file")
	flags.String(FlagBaseURL, "", "base URL of the API, overriding the config file value")
	flags.Duration(FlagTimeout, 0, `exchange timeout (e.g. "10s"), overriding the config file value`)
	flags.Bool(FlagDebug, false, "log client debug events to stderr")
}

// loadConfig reads the config file, if any, and applies the flag overrides.
func loadConfig(flags *pflag.FlagSet) (*wapi.Config, error) {
	cfg := &wapi.Config{}

	path, err := flags.GetString(FlagConfig)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if cfg, err = wapi.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if flags.Changed(FlagBaseURL) {
		if cfg.BaseURL, err = flags.GetString(FlagBaseURL); err != nil {
			return nil, err
		}
	}
	if flags.Changed(FlagTimeout) {
		if cfg.Timeout, err = flags.GetDuration(FlagTimeout); err != nil {
			return nil, err
		}
	}
	if flags.Changed(FlagDebug) {
		if cfg.Debug, err = flags.GetBool(FlagDebug); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// debugOptions routes client debug output through logr backed by slog.
func debugOptions(cmd *cobra.Command) []wapi.Option {
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := logr.FromSlogHandler(handler)
	return []wapi.Option{
		wapi.WithDebug(),
		wapi.WithLogger(wapi.NewLogrLogger(logger)),
	}
}
