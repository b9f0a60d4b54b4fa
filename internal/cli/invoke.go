package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	callFlags
	Args string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <action> [key=value...]",
		Short: "Submit a signed action to the ledger",
		Long: `Submit one action signed by --as (default: the genesis deployer) and
print its receipt.

Arguments are given as key=value pairs, as a JSON object with --args, or
both. Account and contract arguments take names ("voter1", "treasury"),
"zero" or 0x addresses; amounts take wei or "<n> ether".

Exit codes:
  0 - The call succeeded
  1 - The call was recorded but rejected
  2 - Command error (unknown action, malformed args, database not found)

Examples:
  dvgov invoke Token.delegate delegatee=voter1 --as voter1
  dvgov invoke Governance.castVote proposalId=0x... support=1 --as voter2
  dvgov invoke Governance.propose --as proposer --args '{"targets":["treasury"],...}'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeAction(opts, args[0], args[1:], cmd)
		},
	}

	opts.callFlags.register(cmd, "")
	cmd.Flags().StringVar(&opts.Args, "args", "", "action arguments as a JSON object")

	return cmd
}

func invokeAction(opts *InvokeOptions, action string, pairs []string, cmd *cobra.Command) error {
	ctx := context.Background()

	callArgs, err := parseArgs(opts.Args, pairs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	signer := opts.As
	if signer == "" {
		cfg, err := opts.Config()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		signer = cfg.Genesis.Deployer
	}
	from, err := dao.AccountAddress(signer)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --as %q", signer), err)
	}

	s, err := openSession(ctx, opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return submit(ctx, s, newFormatter(opts.RootOptions, cmd), dao.Call{
		Flow:   opts.Flow,
		From:   from,
		Action: action,
		Args:   callArgs,
	})
}
