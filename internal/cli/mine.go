package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
)

// MineOptions holds flags for the mine command.
type MineOptions struct {
	*RootOptions
	callFlags
}

// NewMineCommand creates the mine command.
func NewMineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mine [blocks]",
		Short: "Advance the ledger by empty blocks",
		Long: `Mine empty blocks, one by default. Voting periods and timelock delays
are measured in blocks, so this is how a local session moves time forward.

Examples:
  dvgov mine --db ./dvgov.db
  dvgov mine 5 --db ./dvgov.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks := int64(1)
			if len(args) == 1 {
				n, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil || n <= 0 {
					return NewExitError(ExitCommandError, fmt.Sprintf("invalid block count %q", args[0]))
				}
				blocks = n
			}
			return runMine(opts, blocks, cmd)
		},
	}

	opts.callFlags.register(cmd, "zero")

	return cmd
}

func runMine(opts *MineOptions, blocks int64, cmd *cobra.Command) error {
	ctx := context.Background()
	from, err := dao.AccountAddress(opts.As)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --as %q", opts.As), err)
	}

	s, err := openSession(ctx, opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return submit(ctx, s, newFormatter(opts.RootOptions, cmd), dao.Call{
		Flow:   opts.Flow,
		From:   from,
		Action: "Ledger.mine",
		Args:   ir.Object{"blocks": ir.Int(blocks)},
	})
}
