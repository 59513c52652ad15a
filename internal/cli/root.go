package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paulebil/UniHostel/internal/service"
)

// Env is what a command needs from the running system. hostelctl builds a
// real one from config; tests pass fakes.
type Env struct {
	Receipts service.ReceiptService
	Payments service.PaymentService
	Migrate  func(ctx context.Context) error
	Close    func() error
}

// EnvFactory connects lazily so that --help never touches the database
type EnvFactory func(ctx context.Context) (*Env, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "table" | "json" | "yaml"

	factory EnvFactory
}

var ValidFormats = []string{"table", "json", "yaml"}

// NewRootCommand creates the root command for hostelctl.
func NewRootCommand(factory EnvFactory) *cobra.Command {
	opts := &RootOptions{factory: factory}

	cmd := &cobra.Command{
		Use:           "hostelctl",
		Short:         "Operator tooling for the UniHostel booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Format, "output", "o", "table", "output format (table|json|yaml)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReceiptsCommand(opts))
	cmd.AddCommand(NewPaymentsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withEnv opens the environment, runs fn and always closes it
func (o *RootOptions) withEnv(ctx context.Context, fn func(env *Env) error) error {
	env, err := o.factory(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(env)
}

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd.Context(), func(env *Env) error {
				if err := env.Migrate(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "migration failed", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}
