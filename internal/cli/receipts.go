package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulebil/UniHostel/internal/entity"
)

// receiptView is the operator-facing shape of a receipt
type receiptView struct {
	ID        int64  `json:"id" yaml:"id"`
	Number    string `json:"receipt_number" yaml:"receipt_number"`
	PaymentID int64  `json:"payment_id" yaml:"payment_id"`
	Status    string `json:"status" yaml:"status"`
	Object    string `json:"object,omitempty" yaml:"object,omitempty"`
	Failure   string `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

type receiptList []receiptView

func (l receiptList) Header() []string {
	return []string{"ID", "NUMBER", "PAYMENT", "STATUS", "OBJECT", "CREATED", "FAILURE"}
}

func (l receiptList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10), r.Number, strconv.FormatInt(r.PaymentID, 10),
			r.Status, r.Object, r.CreatedAt, r.Failure,
		})
	}
	return rows
}

func toReceiptList(receipts []*entity.Receipt) receiptList {
	out := make(receiptList, 0, len(receipts))
	for _, r := range receipts {
		view := receiptView{
			ID:        r.ID,
			Number:    r.ReceiptNumber,
			PaymentID: r.PaymentID,
			Status:    string(r.Status),
			Failure:   r.FailureReason,
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if r.ObjectName != "" {
			view.Object = r.BucketName + "/" + r.ObjectName
		}
		out = append(out, view)
	}
	return out
}

func parsePaymentID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid payment id %q", arg))
	}
	return id, nil
}

func NewReceiptsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "Inspect and repair generated receipts",
	}

	cmd.AddCommand(newReceiptsListCommand(opts))
	cmd.AddCommand(newReceiptsRegenerateCommand(opts))
	cmd.AddCommand(newReceiptsReconcileCommand(opts))

	return cmd
}

func newReceiptsListCommand(opts *RootOptions) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List receipts, optionally by status",
		Long: `List receipts newest first.

Examples:
  hostelctl receipts list --status failed
  hostelctl receipts list -o yaml --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd.Context(), func(env *Env) error {
				receipts, err := env.Receipts.ListReceipts(cmd.Context(), entity.ReceiptStatus(status), limit)
				if err != nil {
					if entity.KindOf(err) == entity.KindValidation {
						return WrapExitError(ExitCommandError, "bad filter", err)
					}
					return WrapExitError(ExitFailure, "failed to list receipts", err)
				}
				return render(cmd.OutOrStdout(), opts.Format, toReceiptList(receipts))
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|completed|failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum receipts to show")

	return cmd
}

func newReceiptsRegenerateCommand(opts *RootOptions) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "regenerate <payment-id>",
		Short: "Issue a new receipt for a completed payment",
		Long: `Schedule a fresh generate_receipt task for a completed payment.
Every run produces a new receipt number; earlier receipts are kept.

With --now the receipt is generated in this process instead of through the
task queue. Use it when the service runs the in-process queue.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := parsePaymentID(args[0])
			if err != nil {
				return err
			}

			return opts.withEnv(cmd.Context(), func(env *Env) error {
				if !now {
					if err := env.Receipts.RegenerateReceipt(cmd.Context(), paymentID); err != nil {
						return WrapExitError(ExitFailure, "failed to schedule receipt", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "receipt generation scheduled for payment %d\n", paymentID)
					return nil
				}

				rec, err := env.Receipts.GenerateReceipt(cmd.Context(), paymentID)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to generate receipt", err)
				}
				if err := render(cmd.OutOrStdout(), opts.Format, toReceiptList([]*entity.Receipt{rec})); err != nil {
					return err
				}
				if rec.Status != entity.ReceiptStatusCompleted {
					return NewExitError(ExitFailure, fmt.Sprintf("receipt %s is %s", rec.ReceiptNumber, rec.Status))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&now, "now", false, "generate synchronously instead of scheduling a task")

	return cmd
}

func newReceiptsReconcileCommand(opts *RootOptions) *cobra.Command {
	var (
		grace time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Schedule receipts for completed payments that never got one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd.Context(), func(env *Env) error {
				n, err := env.Receipts.ScheduleMissingReceipts(cmd.Context(), grace, limit)
				if err != nil {
					return WrapExitError(ExitFailure, "reconcile failed", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scheduled %d receipt(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", 10*time.Minute, "skip payments completed more recently than this")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum payments to schedule")

	return cmd
}
