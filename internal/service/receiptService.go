package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/paulebil/UniHostel/config"
	repository "github.com/paulebil/UniHostel/internal/database/postgres"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/notify"
	"github.com/paulebil/UniHostel/pkg/receipt"
	"github.com/paulebil/UniHostel/pkg/storage"
	"github.com/paulebil/UniHostel/pkg/telegram"
	"github.com/sirupsen/logrus"
)

const alertTimeout = 5 * time.Second

// errPaymentAwaitingCommit is retryable: the task can be picked up before the
// transaction that scheduled it commits.
var errPaymentAwaitingCommit = errors.New("payment has not been committed as completed yet")

// ReceiptRenderer turns a receipt context into a document
type ReceiptRenderer interface {
	Render(c receipt.Context) ([]byte, error)
}

// ReceiptDeps groups the collaborators of the receipt pipeline
type ReceiptDeps struct {
	Receipts repository.ReceiptRepository
	Payments repository.PaymentRepository
	Bookings repository.BookingRepository
	Rooms    repository.RoomRepository
	Hostels  repository.HostelRepository
	Renderer ReceiptRenderer
	Store    storage.ObjectStore
	Spool    *storage.Spool
	Notifier notify.Notifier
	Alerter  telegram.Alerter
	Tasks    TaskPublisher
	Events   EventPublisher
}

type receiptService struct {
	ReceiptDeps
	cfg    config.ReceiptConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewReceiptService(deps ReceiptDeps, cfg config.ReceiptConfig, logger logrus.FieldLogger) ReceiptService {
	if cfg.Bucket == "" {
		cfg.Bucket = "receipts"
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 30 * time.Second
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = 24 * time.Hour
	}
	if deps.Alerter == nil {
		deps.Alerter = telegram.LogAlerter{Logger: logger}
	}

	return &receiptService{
		ReceiptDeps: deps,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GenerateReceipt renders, stores and announces one receipt for a completed
// payment. Errors returned before the attempt row is written are safe to retry.
func (s *receiptService) GenerateReceipt(ctx context.Context, paymentID int64) (*entity.Receipt, error) {
	payment, err := s.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch {
	case payment.Status == entity.PaymentStatusCompleted:
	case payment.Status.Recheckable():
		return nil, fmt.Errorf("payment %d: %w", paymentID, errPaymentAwaitingCommit)
	default:
		return nil, fmt.Errorf("payment %d is %s: %w", paymentID, payment.Status, entity.ErrPaymentNotCompleted)
	}

	booking, err := s.Bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	room, err := s.Rooms.GetByID(ctx, booking.RoomID)
	if err != nil {
		return nil, err
	}
	hostel, err := s.Hostels.GetByID(ctx, booking.HostelID)
	if err != nil {
		return nil, err
	}

	number := uuid.NewString()
	logger := s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"receipt_number": number,
	})

	rc := receipt.Context{
		Number:         number,
		IssuedAt:       s.now(),
		Issuer:         s.cfg.Issuer,
		HostelName:     hostel.Name,
		HostelLocation: hostel.Location,
		RoomNumber:     room.RoomNumber,
		BookingID:      booking.ID,
		BookingStatus:  booking.Status,
		Guest:          booking.Guest,
		RoomPrice:      room.Price,
		AmountPaid:     payment.Amount,
		Currency:       payment.Currency,
		PaymentMethod:  payment.Method,
		TransactionID:  payment.TransactionID,
	}

	rec := &entity.Receipt{
		ReceiptNumber: number,
		PaymentID:     payment.ID,
		FileName:      number + receipt.Extension,
	}

	document, err := s.Renderer.Render(rc)
	if err != nil {
		rec.Status = entity.ReceiptStatusFailed
		rec.FailureReason = fmt.Errorf("%w: %v", entity.ErrReceiptRender, err).Error()
		if err := s.Receipts.Create(ctx, rec); err != nil {
			return nil, err
		}
		logger.WithError(err).Error("Receipt render failed")
		s.announceFailure(ctx, rec)
		return rec, nil
	}

	// attempt marker: from here on the task never asks for a retry
	if err := s.Receipts.Create(ctx, rec); err != nil {
		return nil, err
	}

	object, err := s.store(ctx, rec, document)
	if err != nil {
		rec.Status = entity.ReceiptStatusFailed
		rec.FailureReason = err.Error()
		if markErr := s.Receipts.MarkFailed(context.WithoutCancel(ctx), rec.ID, rec.FailureReason); markErr != nil {
			logger.WithError(markErr).Error("Failed to mark receipt failed")
		}
		logger.WithError(err).Error("Receipt upload failed")
		s.announceFailure(ctx, rec)
		return rec, nil
	}

	if err := s.Receipts.MarkCompleted(context.WithoutCancel(ctx), rec.ID, object); err != nil {
		// the object is stored but the row stays pending; regenerate to repair
		logger.WithError(err).Error("Failed to mark receipt completed")
		return rec, nil
	}
	rec.Status = entity.ReceiptStatusCompleted
	rec.BucketName = object.Bucket
	rec.ObjectName = object.Key
	rec.VersionID = object.VersionID
	rec.ETag = object.ETag

	logger.WithField("object", object.Key).Info("Receipt stored")

	s.notifyGuest(ctx, rec, booking, hostel, room, payment)

	emit(ctx, s.Events, s.logger, entity.EventReceiptCompleted, bookingKey(booking.ID), map[string]interface{}{
		"receipt_id":     rec.ID,
		"receipt_number": rec.ReceiptNumber,
		"payment_id":     payment.ID,
		"booking_id":     booking.ID,
		"object":         rec.ObjectName,
	})

	return rec, nil
}

// store spools the document and uploads it; the spooled file never outlives the call
func (s *receiptService) store(ctx context.Context, rec *entity.Receipt, document []byte) (entity.StoredObject, error) {
	tmpPath, err := s.Spool.Write("receipt-*"+receipt.Extension, document)
	if err != nil {
		return entity.StoredObject{}, fmt.Errorf("%w: %v", entity.ErrReceiptStorage, err)
	}
	defer func() {
		if err := s.Spool.Remove(tmpPath); err != nil {
			s.logger.WithError(err).WithField("path", tmpPath).Warn("Failed to remove spooled receipt")
		}
	}()

	uploadCtx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	if err := s.Store.EnsureBucket(uploadCtx, s.cfg.Bucket); err != nil {
		return entity.StoredObject{}, fmt.Errorf("%w: %v", entity.ErrReceiptStorage, err)
	}

	key := path.Join(s.cfg.KeyPrefix, rec.FileName)
	info, err := s.Store.PutFile(uploadCtx, s.cfg.Bucket, key, tmpPath, receipt.ContentType)
	if err != nil {
		return entity.StoredObject{}, fmt.Errorf("%w: %v", entity.ErrReceiptStorage, err)
	}

	return entity.StoredObject{
		Bucket:    info.Bucket,
		Key:       info.Key,
		VersionID: info.VersionID,
		ETag:      info.ETag,
	}, nil
}

// notifyGuest emails the download link. Failures are logged and the receipt stays completed.
func (s *receiptService) notifyGuest(ctx context.Context, rec *entity.Receipt, booking *entity.Booking, hostel *entity.Hostel, room *entity.Room, payment *entity.Payment) {
	logger := s.logger.WithField("receipt_number", rec.ReceiptNumber)
	if s.Notifier == nil {
		return
	}

	url, err := s.Store.PresignedGet(ctx, rec.BucketName, rec.ObjectName, s.cfg.URLTTL)
	if err != nil {
		logger.WithError(err).Warn("Failed to presign receipt URL")
		return
	}

	msg := notify.Message{
		To:       booking.Guest.Email,
		Subject:  "Your UniHostel payment receipt " + rec.ReceiptNumber,
		Template: notify.TemplateReceiptReady,
		Data: map[string]interface{}{
			"FirstName":     booking.Guest.FirstName,
			"Amount":        payment.Currency + " " + payment.Amount.String(),
			"RoomNumber":    room.RoomNumber,
			"HostelName":    hostel.Name,
			"ReceiptNumber": rec.ReceiptNumber,
			"URL":           url,
			"ExpiresAt":     s.now().Add(s.cfg.URLTTL).Format(time.RFC1123),
		},
	}
	if err := s.Notifier.Send(ctx, msg); err != nil {
		logger.WithError(err).Warn("Failed to send receipt email")
		return
	}
	logger.Info("Receipt email sent")
}

func (s *receiptService) announceFailure(ctx context.Context, rec *entity.Receipt) {
	emit(ctx, s.Events, s.logger, entity.EventReceiptFailed, fmt.Sprintf("payment:%d", rec.PaymentID), map[string]interface{}{
		"receipt_id":     rec.ID,
		"receipt_number": rec.ReceiptNumber,
		"payment_id":     rec.PaymentID,
		"reason":         rec.FailureReason,
	})

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	text := fmt.Sprintf("Receipt %s for payment %d failed: %s", rec.ReceiptNumber, rec.PaymentID, rec.FailureReason)
	if err := s.Alerter.Alert(alertCtx, text); err != nil {
		s.logger.WithError(err).Warn("Failed to send operator alert")
	}
}

// RegenerateReceipt schedules a fresh attempt; earlier receipts are kept
func (s *receiptService) RegenerateReceipt(ctx context.Context, paymentID int64) error {
	payment, err := s.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.Status != entity.PaymentStatusCompleted {
		return fmt.Errorf("payment %d is %s: %w", paymentID, payment.Status, entity.ErrPaymentNotCompleted)
	}

	if err := s.schedule(ctx, paymentID); err != nil {
		return err
	}
	s.logger.WithField("payment_id", paymentID).Info("Receipt regeneration scheduled")
	return nil
}

// ScheduleMissingReceipts repairs payments that committed but never got a task run
func (s *receiptService) ScheduleMissingReceipts(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	payments, err := s.Payments.GetCompletedWithoutReceipt(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, payment := range payments {
		if err := s.schedule(ctx, payment.ID); err != nil {
			return scheduled, err
		}
		scheduled++
	}

	if scheduled > 0 {
		s.logger.WithField("count", scheduled).Warn("Scheduled receipts for payments without one")
	}
	return scheduled, nil
}

func (s *receiptService) schedule(ctx context.Context, paymentID int64) error {
	if s.Tasks == nil {
		return entity.Upstream("schedule receipt", errNoQueue)
	}
	task := &Task{
		Type:       TaskTypeGenerateReceipt,
		Data:       map[string]interface{}{"payment_id": paymentID},
		MaxRetries: s.cfg.MaxRetries,
	}
	if err := s.Tasks.Publish(ctx, task); err != nil {
		return entity.Upstream("schedule receipt", err)
	}
	return nil
}

func (s *receiptService) GetReceipt(ctx context.Context, receiptID int64) (*entity.Receipt, error) {
	return s.Receipts.GetByID(ctx, receiptID)
}

func (s *receiptService) ListReceipts(ctx context.Context, status entity.ReceiptStatus, limit int) ([]*entity.Receipt, error) {
	switch status {
	case "", entity.ReceiptStatusPending, entity.ReceiptStatusCompleted, entity.ReceiptStatusFailed:
	default:
		return nil, entity.Validation("unknown receipt status %q", status)
	}
	return s.Receipts.GetByStatus(ctx, status, limit)
}

func (s *receiptService) ListReceiptsByPayment(ctx context.Context, paymentID int64) ([]*entity.Receipt, error) {
	return s.Receipts.GetByPaymentID(ctx, paymentID)
}

func (s *receiptService) ReceiptDownloadURL(ctx context.Context, receiptID int64) (*DownloadURL, error) {
	rec, err := s.Receipts.GetByID(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	if rec.Status != entity.ReceiptStatusCompleted || rec.ObjectName == "" {
		return nil, fmt.Errorf("receipt %s is %s: %w", rec.ReceiptNumber, rec.Status, entity.ErrReceiptNotStored)
	}

	url, err := s.Store.PresignedGet(ctx, rec.BucketName, rec.ObjectName, s.cfg.URLTTL)
	if err != nil {
		return nil, entity.Upstream("presign receipt", err)
	}
	return &DownloadURL{
		ReceiptID: rec.ID,
		URL:       url,
		ExpiresAt: s.now().Add(s.cfg.URLTTL),
	}, nil
}
