package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/notify"
)

func TestGenerateReceiptStoresAndNotifies(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	payment := h.pay(t, "MM-OK")

	rec, err := h.receipts.GenerateReceipt(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusCompleted, rec.Status)
	assert.Equal(t, "receipts", rec.BucketName)
	assert.Equal(t, "receipts/"+rec.ReceiptNumber+".html", rec.ObjectName)
	assert.NotEmpty(t, rec.ETag)

	stored, err := h.receiptRepo.GetByNumber(ctx, rec.ReceiptNumber)
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusCompleted, stored.Status)
	assert.Equal(t, rec.ObjectName, stored.ObjectName)

	exists, err := h.store.Exists(ctx, rec.BucketName, rec.ObjectName)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Empty(t, h.spoolFiles(t), "spooled file is removed after upload")

	require.Len(t, h.notifier.sent, 1)
	msg := h.notifier.sent[0]
	assert.Equal(t, "amina@students.mak.ac.ug", msg.To)
	assert.Equal(t, notify.TemplateReceiptReady, msg.Template)
	assert.Equal(t, rec.ReceiptNumber, msg.Data["ReceiptNumber"])
	assert.Equal(t, "UGX 750000.00", msg.Data["Amount"])
	assert.Contains(t, h.events.types(), entity.EventReceiptCompleted)
	assert.Empty(t, h.alerter.alerts)

	link, err := h.receipts.ReceiptDownloadURL(ctx, stored.ID)
	require.NoError(t, err)
	assert.Contains(t, link.URL, rec.ReceiptNumber)
	assert.WithinDuration(t, time.Now().Add(time.Hour), link.ExpiresAt, time.Minute)
}

func TestGenerateReceiptUploadFailure(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	payment := h.pay(t, "MM-UP")
	h.store.putErr = errors.New("minio: connection reset")

	rec, err := h.receipts.GenerateReceipt(ctx, payment.ID)
	require.NoError(t, err, "a recorded attempt is not retried by the queue")
	assert.Equal(t, entity.ReceiptStatusFailed, rec.Status)

	stored, err := h.receiptRepo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusFailed, stored.Status)
	assert.Contains(t, stored.FailureReason, "connection reset")
	assert.Empty(t, stored.ObjectName)

	assert.Empty(t, h.spoolFiles(t), "spooled file is removed after a failed upload")
	assert.Empty(t, h.notifier.sent)
	assert.Len(t, h.alerter.alerts, 1)
	assert.Contains(t, h.events.types(), entity.EventReceiptFailed)

	_, err = h.receipts.ReceiptDownloadURL(ctx, rec.ID)
	assert.True(t, errors.Is(err, entity.ErrReceiptNotStored))
}

func TestGenerateReceiptRenderFailure(t *testing.T) {
	h := newHarness(t, 2, withRenderer(brokenRenderer{}))
	ctx := context.Background()
	payment := h.pay(t, "MM-RENDER")

	rec, err := h.receipts.GenerateReceipt(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusFailed, rec.Status)

	receipts, err := h.receipts.ListReceiptsByPayment(ctx, payment.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, entity.ReceiptStatusFailed, receipts[0].Status)
	assert.Contains(t, receipts[0].FailureReason, "template exploded")
	assert.Empty(t, h.spoolFiles(t), "nothing is spooled when rendering fails")
}

func TestGenerateReceiptEmailFailureKeepsReceipt(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	payment := h.pay(t, "MM-MAIL")
	h.notifier.err = errors.New("smtp: 421 service not available")

	rec, err := h.receipts.GenerateReceipt(ctx, payment.ID)
	require.NoError(t, err)

	stored, err := h.receiptRepo.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusCompleted, stored.Status)
}

func TestGenerateReceiptRequiresCompletedPayment(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	booking := h.book(t)

	payment, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-WAIT", 75000000))
	require.Error(t, err)

	// not yet committed: retryable, and no attempt row
	_, err = h.receipts.GenerateReceipt(ctx, payment.ID)
	assert.True(t, errors.Is(err, errPaymentAwaitingCommit))
	assert.Equal(t, entity.KindInternal, entity.KindOf(err))

	require.NoError(t, h.paymentRepo.UpdateStatus(ctx, payment.ID, entity.PaymentStatusFailed))
	_, err = h.receipts.GenerateReceipt(ctx, payment.ID)
	assert.True(t, errors.Is(err, entity.ErrPaymentNotCompleted))

	err = h.receipts.RegenerateReceipt(ctx, payment.ID)
	assert.True(t, errors.Is(err, entity.ErrPaymentNotCompleted))

	_, err = h.receipts.GenerateReceipt(ctx, 9999)
	assert.True(t, errors.Is(err, entity.ErrPaymentNotFound))

	receipts, err := h.receipts.ListReceiptsByPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestRegenerateProducesDistinctReceipts(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	payment := h.pay(t, "MM-TWICE")

	first, err := h.receipts.GenerateReceipt(ctx, payment.ID)
	require.NoError(t, err)

	require.NoError(t, h.receipts.RegenerateReceipt(ctx, payment.ID))
	tasks := h.tasks.published()
	require.Len(t, tasks, 2)
	assert.Equal(t, payment.ID, tasks[1].Data["payment_id"])

	second, err := h.receipts.GenerateReceipt(ctx, payment.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.ReceiptNumber, second.ReceiptNumber)
	assert.NotEqual(t, first.ObjectName, second.ObjectName)

	receipts, err := h.receipts.ListReceiptsByPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	completed, err := h.receipts.ListReceipts(ctx, entity.ReceiptStatusCompleted, 10)
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	_, err = h.receipts.ListReceipts(ctx, "archived", 10)
	assert.Equal(t, entity.KindValidation, entity.KindOf(err))
}

func TestScheduleMissingReceipts(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	orphan := h.pay(t, "MM-ORPHAN")
	served := h.pay(t, "MM-SERVED")
	_, err := h.receipts.GenerateReceipt(ctx, served.ID)
	require.NoError(t, err)

	before := len(h.tasks.published())
	time.Sleep(10 * time.Millisecond)

	n, err := h.receipts.ScheduleMissingReceipts(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks := h.tasks.published()
	require.Len(t, tasks, before+1)
	assert.Equal(t, orphan.ID, tasks[len(tasks)-1].Data["payment_id"])

	n, err = h.receipts.ScheduleMissingReceipts(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "payments inside the grace period are left alone")
}

// Booking, payment and receipt from one request to a stored document.
func TestBookingToReceiptScenario(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	booking := h.book(t)
	assert.Equal(t, 1, h.occupancy())

	_, err := h.bookings.CreateBooking(ctx, student, h.bookingRequest("brian"))
	assert.True(t, errors.Is(err, entity.ErrRoomFull))

	h.gateway.settle("MM-E2E", 150000000)
	payment, err := h.payments.CreatePayment(ctx, student, paymentRequest(booking.ID, "MM-E2E", 150000000))
	require.NoError(t, err)

	tasks := h.tasks.published()
	require.Len(t, tasks, 1)
	paymentID, ok := tasks[0].Data["payment_id"].(int64)
	require.True(t, ok)
	assert.Equal(t, payment.ID, paymentID)

	rec, err := h.receipts.GenerateReceipt(ctx, paymentID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusCompleted, rec.Status)

	confirmed, err := h.bookings.GetBooking(ctx, student, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, h.occupancy())

	assert.Equal(t, []entity.EventType{
		entity.EventBookingCreated,
		entity.EventPaymentCompleted,
		entity.EventReceiptCompleted,
	}, h.events.types())
}
