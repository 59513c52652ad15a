package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulebil/UniHostel/config"
	repository "github.com/paulebil/UniHostel/internal/database/postgres"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/gateway"
	"github.com/paulebil/UniHostel/pkg/telegram"
	"github.com/sirupsen/logrus"
)

// errReceiptTaskRejected wraps a queue failure during payment completion
var errReceiptTaskRejected = errors.New("receipt task was not accepted")

type paymentService struct {
	paymentRepo repository.PaymentRepository
	bookingRepo repository.BookingRepository
	roomRepo    repository.RoomRepository
	hostelRepo  repository.HostelRepository
	txnRepo     repository.TransactionRepository
	ledger      gateway.Ledger
	tasks       TaskPublisher
	events      EventPublisher
	alerter     telegram.Alerter
	validate    *Validator
	cfg         config.PaymentConfig
	taskRetries int
	logger      logrus.FieldLogger
	now         func() time.Time
}

// PaymentDeps groups the collaborators of the payment processor
type PaymentDeps struct {
	Payments     repository.PaymentRepository
	Bookings     repository.BookingRepository
	Rooms        repository.RoomRepository
	Hostels      repository.HostelRepository
	Transactions repository.TransactionRepository
	Ledger       gateway.Ledger
	Tasks        TaskPublisher
	Events       EventPublisher
	Alerter      telegram.Alerter
	Validator    *Validator
}

func NewPaymentService(deps PaymentDeps, cfg config.PaymentConfig, receiptCfg config.ReceiptConfig, logger logrus.FieldLogger) PaymentService {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 3 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "UGX"
	}
	if deps.Alerter == nil {
		deps.Alerter = telegram.LogAlerter{Logger: logger}
	}
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}

	return &paymentService{
		paymentRepo: deps.Payments,
		bookingRepo: deps.Bookings,
		roomRepo:    deps.Rooms,
		hostelRepo:  deps.Hostels,
		txnRepo:     deps.Transactions,
		ledger:      deps.Ledger,
		tasks:       deps.Tasks,
		events:      deps.Events,
		alerter:     deps.Alerter,
		validate:    deps.Validator,
		cfg:         cfg,
		taskRetries: receiptCfg.MaxRetries,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, principal entity.Principal, req *CreatePaymentRequest) (*entity.Payment, error) {
	payment, err := s.validatePayment(req)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && (principal.Role != entity.RoleStudent || booking.StudentID != principal.ID) {
		return nil, fmt.Errorf("booking %d: %w", booking.ID, entity.ErrForbidden)
	}
	if booking.Status != entity.BookingStatusPending {
		return nil, fmt.Errorf("booking %d is %s: %w", booking.ID, booking.Status, entity.ErrBookingNotPayable)
	}

	// the booking's own slot is already counted, so a full room is fine here
	room, err := s.roomRepo.GetByID(ctx, booking.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Occupancy > room.Capacity {
		s.logger.WithFields(logrus.Fields{
			"room_id":   room.ID,
			"occupancy": room.Occupancy,
			"capacity":  room.Capacity,
		}).Error("Room is oversubscribed")
		return nil, fmt.Errorf("room %d: %w", room.ID, entity.ErrRoomOversubscribed)
	}

	if _, err := s.paymentRepo.GetByTransactionID(ctx, payment.TransactionID); err == nil {
		return nil, fmt.Errorf("transaction %s: %w", payment.TransactionID, entity.ErrDuplicateTransaction)
	} else if !errors.Is(err, entity.ErrPaymentNotFound) {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"booking_id":     payment.BookingID,
		"transaction_id": payment.TransactionID,
	}).Info("Payment recorded")

	return s.settle(ctx, payment)
}

// RecheckPayment asks the ledger again about a pending or not_received payment
func (s *paymentService) RecheckPayment(ctx context.Context, paymentID int64) (*entity.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch {
	case payment.Status == entity.PaymentStatusCompleted:
		return payment, nil
	case !payment.Status.Recheckable():
		return payment, fmt.Errorf("payment %d: %w", payment.ID, entity.ErrPaymentRejected)
	}

	return s.settle(ctx, payment)
}

// RecheckPending sweeps payments the ledger has not confirmed yet
func (s *paymentService) RecheckPending(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.RecheckAge)
	payments, err := s.paymentRepo.GetRecheckable(ctx, cutoff, s.cfg.RecheckBatch)
	if err != nil {
		return fmt.Errorf("failed to list recheckable payments: %w", err)
	}

	completed := 0
	for _, payment := range payments {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := s.settle(ctx, payment)
		switch {
		case err == nil:
			completed++
		case entity.KindOf(err) == entity.KindNotSettled:
			// still waiting on the gateway
		default:
			s.logger.WithError(err).WithField("payment_id", payment.ID).Warn("Payment recheck failed")
		}
	}

	if len(payments) > 0 {
		s.logger.WithFields(logrus.Fields{
			"checked":   len(payments),
			"completed": completed,
		}).Info("Pending payments rechecked")
	}
	return nil
}

func (s *paymentService) GetPayment(ctx context.Context, principal entity.Principal, paymentID int64) (*entity.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.hostelRepo, principal, booking); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) ListPaymentsByBooking(ctx context.Context, principal entity.Principal, bookingID int64) ([]*entity.Payment, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.hostelRepo, principal, booking); err != nil {
		return nil, err
	}
	return s.paymentRepo.GetByBookingID(ctx, bookingID)
}

// RecordGatewayTransaction stores the gateway's record and settles a waiting
// payment for it straight away instead of leaving it to the next sweep.
func (s *paymentService) RecordGatewayTransaction(ctx context.Context, txn *entity.GatewayTransaction) error {
	txn.TransactionID = strings.TrimSpace(txn.TransactionID)
	txn.Currency = strings.ToUpper(strings.TrimSpace(txn.Currency))

	if err := s.validate.Struct("gateway transaction", txn); err != nil {
		return err
	}
	if txn.RecordedAt.IsZero() {
		txn.RecordedAt = s.now()
	}

	if err := s.txnRepo.Upsert(ctx, txn); err != nil {
		return err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"status":         txn.Status,
	})
	logger.Info("Gateway transaction recorded")

	payment, err := s.paymentRepo.GetByTransactionID(ctx, txn.TransactionID)
	if err != nil {
		if !errors.Is(err, entity.ErrPaymentNotFound) {
			logger.WithError(err).Warn("Failed to look up payment for transaction")
		}
		return nil
	}
	if payment.Status.Recheckable() {
		if _, err := s.settle(ctx, payment); err != nil && entity.KindOf(err) != entity.KindNotSettled {
			logger.WithError(err).WithField("payment_id", payment.ID).Warn("Payment not settled from webhook")
		}
	}
	return nil
}

// settle confirms the payment against the transaction ledger. The returned
// payment reflects whatever state was persisted.
func (s *paymentService) settle(ctx context.Context, payment *entity.Payment) (*entity.Payment, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"transaction_id": payment.TransactionID,
	})

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	txn, err := s.ledger.Lookup(lookupCtx, payment.TransactionID)
	cancel()

	switch {
	case errors.Is(err, entity.ErrTransactionNotFound):
		return s.markUnsettled(ctx, payment, entity.PaymentStatusNotReceived, entity.ErrPaymentNotReceived)
	case err != nil:
		// a timed out lookup says nothing about the transaction
		logger.WithError(err).Warn("Transaction ledger unavailable")
		return payment, entity.Upstream("transaction ledger lookup", err)
	}

	switch txn.Status {
	case entity.GatewayStatusPending:
		return s.markUnsettled(ctx, payment, entity.PaymentStatusNotReceived, entity.ErrPaymentNotReceived)
	case entity.GatewayStatusFailed:
		return s.markUnsettled(ctx, payment, entity.PaymentStatusFailed, entity.ErrPaymentRejected)
	}

	if txn.Amount != payment.Amount || !strings.EqualFold(txn.Currency, payment.Currency) {
		logger.WithFields(logrus.Fields{
			"expected": payment.Currency + " " + payment.Amount.String(),
			"settled":  txn.Currency + " " + txn.Amount.String(),
		}).Warn("Settled amount does not match payment")
		return s.markUnsettled(ctx, payment, entity.PaymentStatusFailed, entity.ErrAmountMismatch)
	}

	completed, err := s.paymentRepo.Complete(ctx, payment.ID, func(txCtx context.Context) error {
		return s.scheduleReceipt(txCtx, payment.ID)
	})
	if err != nil {
		if errors.Is(err, entity.ErrPaymentAlreadyCompleted) {
			return s.paymentRepo.GetByID(ctx, payment.ID)
		}
		if errors.Is(err, entity.ErrBookingNotPayable) {
			return s.retireOrphaned(ctx, payment, txn, err)
		}
		logger.WithError(err).Error("Failed to complete payment")
		return payment, err
	}

	logger.WithField("booking_id", completed.BookingID).Info("Payment completed")

	emit(ctx, s.events, s.logger, entity.EventPaymentCompleted, bookingKey(completed.BookingID), map[string]interface{}{
		"payment_id":     completed.ID,
		"booking_id":     completed.BookingID,
		"transaction_id": completed.TransactionID,
		"amount":         completed.Amount.String(),
		"currency":       completed.Currency,
	})

	return completed, nil
}

// retireOrphaned handles money that settled after its booking stopped being
// payable. The payment goes terminal so the recheck sweep drops it, and an
// operator is told to refund.
func (s *paymentService) retireOrphaned(ctx context.Context, payment *entity.Payment, txn *entity.GatewayTransaction, cause error) (*entity.Payment, error) {
	retired, err := s.markUnsettled(ctx, payment, entity.PaymentStatusFailed, cause)
	if retired == nil || retired.Status != entity.PaymentStatusFailed {
		return retired, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"booking_id":     payment.BookingID,
		"transaction_id": payment.TransactionID,
	}).Error("Settled payment has no payable booking, refund required")

	emit(ctx, s.events, s.logger, entity.EventPaymentOrphaned, bookingKey(payment.BookingID), map[string]interface{}{
		"payment_id":     payment.ID,
		"booking_id":     payment.BookingID,
		"transaction_id": payment.TransactionID,
		"amount":         txn.Amount.String(),
		"currency":       txn.Currency,
	})

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	text := fmt.Sprintf("Payment %d (transaction %s, %s %s) settled but booking %d is no longer payable. Refund required.",
		payment.ID, payment.TransactionID, txn.Currency, txn.Amount.String(), payment.BookingID)
	if alertErr := s.alerter.Alert(alertCtx, text); alertErr != nil {
		s.logger.WithError(alertErr).Warn("Failed to send operator alert")
	}

	return retired, err
}

func (s *paymentService) scheduleReceipt(ctx context.Context, paymentID int64) error {
	if s.tasks == nil {
		return entity.Upstream("schedule receipt", errNoQueue)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	task := &Task{
		Type:       TaskTypeGenerateReceipt,
		Data:       map[string]interface{}{"payment_id": paymentID},
		MaxRetries: s.taskRetries,
	}
	if err := s.tasks.Publish(ctx, task); err != nil {
		return entity.Upstream("schedule receipt", fmt.Errorf("%w: %v", errReceiptTaskRejected, err))
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"task_id":    task.ID,
	}).Debug("Receipt generation scheduled")
	return nil
}

// markUnsettled persists a non-completed outcome and returns reason as the error
func (s *paymentService) markUnsettled(ctx context.Context, payment *entity.Payment, status entity.PaymentStatus, reason error) (*entity.Payment, error) {
	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, status); err != nil {
		if errors.Is(err, entity.ErrPaymentAlreadyCompleted) {
			// a concurrent recheck won
			return s.paymentRepo.GetByID(ctx, payment.ID)
		}
		return payment, err
	}

	payment.Status = status
	payment.UpdatedAt = s.now()

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"status":     status,
	}).Info("Payment not settled")

	return payment, fmt.Errorf("payment %d: %w", payment.ID, reason)
}

// validatePayment normalizes the request, fills the default currency and
// builds the pending payment row
func (s *paymentService) validatePayment(req *CreatePaymentRequest) (*entity.Payment, error) {
	normalized := *req
	normalized.TransactionID = strings.TrimSpace(req.TransactionID)
	normalized.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	normalized.Method = strings.TrimSpace(req.Method)
	if normalized.Currency == "" {
		normalized.Currency = s.cfg.Currency
	}

	if err := s.validate.Struct("payment", &normalized); err != nil {
		return nil, err
	}

	return &entity.Payment{
		BookingID:     normalized.BookingID,
		TransactionID: normalized.TransactionID,
		Amount:        normalized.Amount,
		Currency:      normalized.Currency,
		Method:        normalized.Method,
		Status:        entity.PaymentStatusPending,
	}, nil
}
