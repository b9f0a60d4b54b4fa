package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	cfg *config.Config
}

// annotationNoConfig marks commands that load the config themselves.
const annotationNoConfig = "dvgov/no-config"

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dvgov CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dvgov",
		Short: "dvgov - DAO governance ledger",
		Long: `A token-weighted governance DAO on a deterministic local ledger.

Token holders delegate, propose and vote; passing proposals are queued on a
timelock, which alone may release the treasury.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoConfig] != "" {
				if !isValidFormat(opts.Format) {
					return NewExitError(ExitCommandError,
						fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
				}
				return nil
			}
			cfg, err := opts.Config()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			if !cmd.Flags().Changed("format") {
				opts.Format = cfg.Format
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewDeployCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewMineCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Config loads the configuration once: defaults, the --config file and
// DVGOV_* environment variables.
func (o *RootOptions) Config() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}

// Logger returns a text logger on w at the configured level, or debug
// under --verbose.
func (o *RootOptions) Logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if cfg, err := o.Config(); err == nil {
		if l, err := cfg.Level(); err == nil {
			level = l
		}
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// databasePath returns the --db flag value, falling back to the configured
// database path.
func (o *RootOptions) databasePath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := o.Config()
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg.DatabasePath, nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
