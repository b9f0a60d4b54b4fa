package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dvgov/internal/dao"
	"github.com/roach88/dvgov/internal/ir"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Args     string
	List     bool
}

// ViewResult is the output of a view.
type ViewResult struct {
	View   string    `json:"view"`
	Height int64     `json:"height"`
	Result ir.Object `json:"result"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <view> [key=value...]",
		Short: "Evaluate a read-only view",
		Long: `Evaluate a view at the current height. Views never record a call.

Examples:
  dvgov query Governance.state proposalId=0x...
  dvgov query Token.getVotes account=voter1
  dvgov query Treasury.info
  dvgov query --list`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.List {
				return listCatalog(newFormatter(opts.RootOptions, cmd))
			}
			return runQuery(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Args, "args", "", "view arguments as a JSON object")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list actions and views")

	return cmd
}

func runQuery(opts *QueryOptions, view string, pairs []string, cmd *cobra.Command) error {
	ctx := context.Background()
	viewArgs, err := parseArgs(opts.Args, pairs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	s, err := openSession(ctx, opts.RootOptions, opts.Database, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	height, err := s.ledger.Height(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read height", err)
	}
	f := newFormatter(opts.RootOptions, cmd)
	got, err := s.dao.Query(ctx, view, viewArgs)
	if err != nil {
		if renderErr := f.Error(string(ir.CodeOf(err)), err.Error(), nil); renderErr != nil {
			return renderErr
		}
		return WrapExitError(ExitFailure, fmt.Sprintf("%s failed", view), err)
	}

	result := ViewResult{View: view, Height: height, Result: got}
	return f.Render(result, nil, func(w io.Writer) {
		fmt.Fprintf(w, "%s at block %d\n", view, height)
		writeObject(w, "  ", got)
	})
}

// Catalog lists what invoke and query accept.
type Catalog struct {
	Actions []string `json:"actions"`
	Views   []string `json:"views"`
}

func listCatalog(f *OutputFormatter) error {
	c := Catalog{Actions: dao.Actions(), Views: dao.Views()}
	return f.Render(c, nil, func(w io.Writer) {
		fmt.Fprintln(w, "Actions:")
		for _, a := range c.Actions {
			fmt.Fprintf(w, "  %s\n", a)
		}
		fmt.Fprintln(w, "Views:")
		for _, v := range c.Views {
			fmt.Fprintf(w, "  %s\n", v)
		}
	})
}
