package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	callFlags
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the DAO from the configured genesis",
		Long: `Deploy the token, timelock, governor and treasury in one call signed
by the genesis deployer.

The genesis comes from the genesis section of the config file, overlaid on
the built-in DVenture DAO defaults. A database can be deployed only once.

Examples:
  dvgov deploy --db ./dvgov.db
  dvgov deploy --db ./dvgov.db --config ./dao.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow token grouping the call (default: a new UUIDv7)")

	return cmd
}

func runDeploy(opts *DeployOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	s, err := openSession(ctx, opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	rcpt, err := s.dao.Deploy(ctx, opts.Flow, cfg.Genesis)
	return reportCall(s.dao, newFormatter(opts.RootOptions, cmd), dao.ActionDeploy, rcpt, err)
}
