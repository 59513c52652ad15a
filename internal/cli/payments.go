package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulebil/UniHostel/internal/entity"
)

type paymentView struct {
	ID            int64  `json:"id" yaml:"id"`
	BookingID     int64  `json:"booking_id" yaml:"booking_id"`
	TransactionID string `json:"transaction_id" yaml:"transaction_id"`
	Amount        string `json:"amount" yaml:"amount"`
	Status        string `json:"payment_status" yaml:"payment_status"`
	UpdatedAt     string `json:"updated_at" yaml:"updated_at"`
}

func (p paymentView) Header() []string {
	return []string{"ID", "BOOKING", "TRANSACTION", "AMOUNT", "STATUS", "UPDATED"}
}

func (p paymentView) Rows() [][]string {
	return [][]string{{
		strconv.FormatInt(p.ID, 10), strconv.FormatInt(p.BookingID, 10),
		p.TransactionID, p.Amount, p.Status, p.UpdatedAt,
	}}
}

func toPaymentView(p *entity.Payment) paymentView {
	return paymentView{
		ID:            p.ID,
		BookingID:     p.BookingID,
		TransactionID: p.TransactionID,
		Amount:        p.Currency + " " + p.Amount.String(),
		Status:        string(p.Status),
		UpdatedAt:     p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func NewPaymentsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Check payments against the transaction ledger",
	}

	cmd.AddCommand(newPaymentsRecheckCommand(opts))

	return cmd
}

func newPaymentsRecheckCommand(opts *RootOptions) *cobra.Command {
	var pending bool

	cmd := &cobra.Command{
		Use:   "recheck [payment-id]",
		Short: "Ask the transaction ledger again about a payment",
		Long: `Recheck one payment, or with --pending every payment the ledger has not
settled yet. A payment that is still not settled exits with code 1.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if pending {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending {
				return opts.withEnv(cmd.Context(), func(env *Env) error {
					if err := env.Payments.RecheckPending(cmd.Context()); err != nil {
						return WrapExitError(ExitFailure, "recheck failed", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), "pending payments rechecked")
					return nil
				})
			}

			paymentID, err := parsePaymentID(args[0])
			if err != nil {
				return err
			}

			return opts.withEnv(cmd.Context(), func(env *Env) error {
				payment, err := env.Payments.RecheckPayment(cmd.Context(), paymentID)
				if payment != nil {
					if rerr := render(cmd.OutOrStdout(), opts.Format, toPaymentView(payment)); rerr != nil {
						return rerr
					}
				}
				if err != nil {
					return WrapExitError(ExitFailure, fmt.Sprintf("payment %d not completed", paymentID), err)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "recheck every unsettled payment")

	return cmd
}
