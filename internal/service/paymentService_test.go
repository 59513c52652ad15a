package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/gateway"
)

func paymentRequest(bookingID int64, txID string, amount entity.Money) *CreatePaymentRequest {
	return &CreatePaymentRequest{
		BookingID:     bookingID,
		Amount:        amount,
		TransactionID: txID,
		Method:        "mobile_money",
	}
}

func TestCreatePaymentSettled(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	booking := h.book(t)
	h.gateway.settle("MM-1", 75000000)

	payment, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-1", 75000000))
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "UGX", payment.Currency)

	confirmed, err := h.bookingRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)

	tasks := h.tasks.published()
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskTypeGenerateReceipt, tasks[0].Type)
	assert.Equal(t, payment.ID, tasks[0].Data["payment_id"])
	assert.Equal(t, 3, tasks[0].MaxRetries)
	assert.Contains(t, h.events.types(), entity.EventPaymentCompleted)

	// a confirmed booking takes no further payments
	_, err = h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-2", 1000))
	assert.True(t, errors.Is(err, entity.ErrBookingNotPayable))
}

func TestCreatePaymentDuplicateTransaction(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	first := h.book(t)
	second := h.book(t)

	_, err := h.payments.CreatePayment(ctx, student, paymentRequest(first.ID, "MM-DUP", 75000000))
	require.True(t, errors.Is(err, entity.ErrPaymentNotReceived))

	_, err = h.payments.CreatePayment(ctx, student, paymentRequest(second.ID, "MM-DUP", 75000000))
	assert.True(t, errors.Is(err, entity.ErrDuplicateTransaction))
	assert.Equal(t, entity.KindConflict, entity.KindOf(err))

	payments, err := h.paymentRepo.GetByBookingID(ctx, second.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreatePaymentNotReceived(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	booking := h.book(t)

	payment, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-404", 75000000))
	require.Error(t, err)
	assert.Equal(t, entity.KindNotSettled, entity.KindOf(err))
	require.NotNil(t, payment)
	assert.Equal(t, entity.PaymentStatusNotReceived, payment.Status)
	assert.Empty(t, h.tasks.published())

	// gateway catches up, recheck completes it
	h.gateway.settle("MM-404", 75000000)
	payment, err = h.payments.RecheckPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, payment.Status)
	assert.Len(t, h.tasks.published(), 1)

	// completed payments recheck as a no-op
	again, err := h.payments.RecheckPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, again.Status)
	assert.Len(t, h.tasks.published(), 1)
}

func TestCreatePaymentLedgerTimeoutKeepsPending(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	booking := h.book(t)
	h.gateway.block = true

	payment, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-SLOW", 75000000))
	require.Error(t, err)
	assert.Equal(t, entity.KindUpstreamUnavailable, entity.KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	stored, err := h.paymentRepo.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, stored.Status)
	assert.Empty(t, h.tasks.published())
}

func TestCreatePaymentRejectedOrMismatched(t *testing.T) {
	tests := []struct {
		name string
		txn  entity.GatewayTransaction
		want error
	}{
		{
			name: "gateway failed",
			txn:  entity.GatewayTransaction{Status: entity.GatewayStatusFailed, Amount: 75000000, Currency: "UGX"},
			want: entity.ErrPaymentRejected,
		},
		{
			name: "amount differs",
			txn:  entity.GatewayTransaction{Status: entity.GatewayStatusSettled, Amount: 70000000, Currency: "UGX"},
			want: entity.ErrAmountMismatch,
		},
		{
			name: "currency differs",
			txn:  entity.GatewayTransaction{Status: entity.GatewayStatusSettled, Amount: 75000000, Currency: "KES"},
			want: entity.ErrAmountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2)
			booking := h.book(t)
			txn := tt.txn
			txn.TransactionID = "MM-X"
			h.gateway.set(&txn)

			payment, err := h.payments.CreatePayment(context.Background(), student, paymentRequest(booking.ID, "MM-X", 75000000))
			assert.True(t, errors.Is(err, tt.want))
			assert.Equal(t, entity.KindConflict, entity.KindOf(err))
			assert.Equal(t, entity.PaymentStatusFailed, payment.Status)

			_, err = h.payments.RecheckPayment(context.Background(), payment.ID)
			assert.True(t, errors.Is(err, entity.ErrPaymentRejected))
		})
	}
}

func TestCreatePaymentPublishFailureRollsBack(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	booking := h.book(t)
	h.gateway.settle("MM-Q", 75000000)
	h.tasks.err = errors.New("redis: connection refused")

	payment, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-Q", 75000000))
	require.Error(t, err)
	assert.Equal(t, entity.KindUpstreamUnavailable, entity.KindOf(err))
	assert.True(t, errors.Is(err, errReceiptTaskRejected))

	stored, err := h.paymentRepo.GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusPending, stored.Status)

	unconfirmed, err := h.bookingRepo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, unconfirmed.Status)

	// queue back, recheck promotes it
	h.tasks.err = nil
	payment, err = h.payments.RecheckPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, payment.Status)
}

func TestCreatePaymentGuards(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	booking := h.book(t)

	_, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "", 0))
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
	assert.Contains(t, err.Error(), "amount must be positive")
	assert.Contains(t, err.Error(), "transaction_id is required")

	_, err = h.payments.CreatePayment(ctx, student, paymentRequest(9999, "MM-1", 100))
	assert.True(t, errors.Is(err, entity.ErrBookingNotFound))

	stranger := entity.Principal{ID: 7, Role: entity.RoleStudent}
	_, err = h.payments.CreatePayment(ctx, stranger, paymentRequest(booking.ID, "MM-1", 100))
	assert.Equal(t, entity.KindForbidden, entity.KindOf(err))

	_, err = h.bookings.CancelBooking(ctx, student, booking.ID, "")
	require.NoError(t, err)
	_, err = h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-1", 100))
	assert.True(t, errors.Is(err, entity.ErrBookingNotPayable))
}

func TestRecordGatewayTransactionSettlesWaitingPayment(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	// the table ledger reads what the webhook writes
	h.payments = NewPaymentService(PaymentDeps{
		Payments:     h.paymentRepo,
		Bookings:     h.bookingRepo,
		Transactions: h.txnRepo,
		Ledger:       gateway.NewTableLedger(h.txnRepo),
		Tasks:        h.tasks,
	}, paymentConfigForTests(), receiptConfigForTests(), nullLogger())

	booking := h.book(t)
	payment, err := h.paymentRepo.GetByBookingID(ctx, booking.ID)
	require.NoError(t, err)
	require.Empty(t, payment)

	created := &entity.Payment{
		BookingID:     booking.ID,
		TransactionID: "MM-HOOK",
		Amount:        75000000,
		Currency:      "UGX",
		Method:        "mobile_money",
		Status:        entity.PaymentStatusNotReceived,
	}
	require.NoError(t, h.paymentRepo.Create(ctx, created))

	err = h.payments.RecordGatewayTransaction(ctx, &entity.GatewayTransaction{
		TransactionID: " MM-HOOK ",
		Status:        entity.GatewayStatusSettled,
		Amount:        75000000,
		Currency:      "ugx",
	})
	require.NoError(t, err)

	stored, err := h.paymentRepo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, stored.Status)
	assert.Len(t, h.tasks.published(), 1)

	err = h.payments.RecordGatewayTransaction(ctx, &entity.GatewayTransaction{TransactionID: "x", Status: "weird", Amount: 1, Currency: "UGX"})
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

func TestRecheckPendingSweepsOldPayments(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	first := h.book(t)
	second := h.book(t)

	p1, err := h.payments.CreatePayment(ctx, student, paymentRequest(first.ID, "MM-A", 75000000))
	require.Error(t, err)
	p2, err := h.payments.CreatePayment(ctx, student, paymentRequest(second.ID, "MM-B", 75000000))
	require.Error(t, err)

	h.gateway.settle("MM-A", 75000000)
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, h.payments.RecheckPending(ctx))

	got1, err := h.paymentRepo.GetByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, got1.Status)

	got2, err := h.paymentRepo.GetByID(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusNotReceived, got2.Status)
}

func TestPaymentReads(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	payment := h.pay(t, "MM-R")

	got, err := h.payments.GetPayment(ctx, owner, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "MM-R", got.TransactionID)

	_, err = h.payments.GetPayment(ctx, entity.Principal{ID: 7, Role: entity.RoleStudent}, payment.ID)
	assert.Equal(t, entity.KindForbidden, entity.KindOf(err))

	list, err := h.payments.ListPaymentsByBooking(ctx, student, payment.BookingID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSettlementAfterCancellationRetiresPayment(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	// one payment per sweep, so a stuck row would starve the next one
	cfg := paymentConfigForTests()
	cfg.RecheckBatch = 1
	h.payments = NewPaymentService(PaymentDeps{
		Payments:     h.paymentRepo,
		Bookings:     h.bookingRepo,
		Transactions: h.txnRepo,
		Ledger:       h.gateway,
		Tasks:        h.tasks,
		Events:       h.events,
		Alerter:      h.alerter,
	}, cfg, receiptConfigForTests(), nullLogger())

	cancelled := h.book(t)
	orphan, err := h.payments.CreatePayment(ctx, student, paymentRequest(cancelled.ID, "MM-LATE", 75000000))
	require.True(t, errors.Is(err, entity.ErrPaymentNotReceived))
	_, err = h.bookings.CancelBooking(ctx, student, cancelled.ID, "changed hostel")
	require.NoError(t, err)
	h.gateway.settle("MM-LATE", 75000000)

	live := h.book(t)
	waiting, err := h.payments.CreatePayment(ctx, student, paymentRequest(live.ID, "MM-GOOD", 75000000))
	require.True(t, errors.Is(err, entity.ErrPaymentNotReceived))
	h.gateway.settle("MM-GOOD", 75000000)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, h.payments.RecheckPending(ctx))

	retired, err := h.paymentRepo.GetByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusFailed, retired.Status)
	require.Len(t, h.alerter.alerts, 1)
	assert.Contains(t, h.alerter.alerts[0], "MM-LATE")
	assert.Contains(t, h.alerter.alerts[0], "Refund required")
	assert.Contains(t, h.events.types(), entity.EventPaymentOrphaned)

	require.NoError(t, h.payments.RecheckPending(ctx))

	promoted, err := h.paymentRepo.GetByID(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentStatusCompleted, promoted.Status)
	assert.Len(t, h.alerter.alerts, 1)

	// a retired payment stays out of the sweep
	_, err = h.payments.RecheckPayment(ctx, orphan.ID)
	assert.True(t, errors.Is(err, entity.ErrPaymentRejected))
}

func TestSecondSettledPaymentForConfirmedBookingIsRetired(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	booking := h.book(t)

	first, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-ONE", 75000000))
	require.Error(t, err)
	second, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-TWO", 75000000))
	require.Error(t, err)

	h.gateway.settle("MM-ONE", 75000000)
	h.gateway.settle("MM-TWO", 75000000)

	_, err = h.payments.RecheckPayment(ctx, first.ID)
	require.NoError(t, err)

	got, err := h.payments.RecheckPayment(ctx, second.ID)
	assert.True(t, errors.Is(err, entity.ErrBookingNotPayable))
	assert.Equal(t, entity.KindConflict, entity.KindOf(err))
	require.NotNil(t, got)
	assert.Equal(t, entity.PaymentStatusFailed, got.Status)
	assert.Len(t, h.alerter.alerts, 1)
	assert.Len(t, h.tasks.published(), 1)
}
