package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/internal/database/dbtest"
	repository "github.com/paulebil/UniHostel/internal/database/postgres"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/notify"
	"github.com/paulebil/UniHostel/pkg/receipt"
	"github.com/paulebil/UniHostel/pkg/storage"
)

const (
	ownerID   int64 = 900
	studentID int64 = 42
	roomPrice       = entity.Money(150000000)
)

var (
	student = entity.Principal{ID: studentID, Role: entity.RoleStudent}
	owner   = entity.Principal{ID: ownerID, Role: entity.RoleOwner}
	admin   = entity.Principal{ID: 1, Role: entity.RoleAdmin}
)

type fakeLedger struct {
	mu    sync.Mutex
	txns  map[string]*entity.GatewayTransaction
	err   error
	block bool
}

func (l *fakeLedger) settle(id string, amount entity.Money) {
	l.set(&entity.GatewayTransaction{TransactionID: id, Status: entity.GatewayStatusSettled, Amount: amount, Currency: "UGX"})
}

func (l *fakeLedger) set(txn *entity.GatewayTransaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txns[txn.TransactionID] = txn
}

func (l *fakeLedger) Lookup(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error) {
	l.mu.Lock()
	block, err, txn := l.block, l.err, l.txns[transactionID]
	l.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, entity.ErrTransactionNotFound
	}
	copied := *txn
	return &copied, nil
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks []*Task
	err   error
}

func (q *fakeTasks) Publish(ctx context.Context, task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	task.ID = fmt.Sprintf("task-%d", len(q.tasks)+1)
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeTasks) published() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Task(nil), q.tasks...)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []entity.DomainEvent
}

func (e *fakeEvents) Publish(ctx context.Context, event entity.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *fakeEvents) types() []entity.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []entity.EventType
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

type fakeAlerter struct {
	alerts []string
}

func (a *fakeAlerter) Alert(ctx context.Context, text string) error {
	a.alerts = append(a.alerts, text)
	return nil
}

// failingStore wraps a real store and fails uploads on demand
type failingStore struct {
	storage.ObjectStore
	putErr error
}

func (s *failingStore) PutFile(ctx context.Context, bucket, key, path, contentType string) (storage.ObjectInfo, error) {
	if s.putErr != nil {
		return storage.ObjectInfo{}, s.putErr
	}
	return s.ObjectStore.PutFile(ctx, bucket, key, path, contentType)
}

type brokenRenderer struct{}

func (brokenRenderer) Render(receipt.Context) ([]byte, error) {
	return nil, errors.New("template exploded")
}

type harness struct {
	bookings BookingService
	ledger   LedgerService
	payments PaymentService
	receipts ReceiptService

	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	receiptRepo repository.ReceiptRepository
	txnRepo     repository.TransactionRepository

	gateway  *fakeLedger
	tasks    *fakeTasks
	events   *fakeEvents
	notifier *fakeNotifier
	alerter  *fakeAlerter
	store    *failingStore
	spoolDir string

	hostelID  int64
	roomID    int64
	occupancy func() int
}

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func paymentConfigForTests() config.PaymentConfig {
	return config.PaymentConfig{
		LookupTimeout:  50 * time.Millisecond,
		PublishTimeout: time.Second,
		Currency:       "UGX",
		RecheckBatch:   10,
	}
}

func receiptConfigForTests() config.ReceiptConfig {
	return config.ReceiptConfig{
		Bucket:        "receipts",
		KeyPrefix:     "receipts",
		UploadTimeout: time.Second,
		URLTTL:        time.Hour,
		Issuer:        "UniHostel",
		MaxRetries:    3,
	}
}

type harnessOption func(*ReceiptDeps)

func withRenderer(r ReceiptRenderer) harnessOption {
	return func(d *ReceiptDeps) { d.Renderer = r }
}

func newHarness(t *testing.T, capacity int, opts ...harnessOption) *harness {
	t.Helper()

	db := dbtest.Open(t)
	hostelID := dbtest.SeedHostel(t, db, ownerID, "Olympia Hostel")
	roomID := dbtest.SeedRoom(t, db, hostelID, "A12", capacity, roomPrice)

	hostels := repository.NewHostelRepository(db)
	rooms := repository.NewRoomRepository(db, repository.WithoutRowLocks())
	bookings := repository.NewBookingRepository(db, repository.WithoutRowLocks())
	payments := repository.NewPaymentRepository(db, repository.WithoutRowLocks())
	receipts := repository.NewReceiptRepository(db, repository.WithoutRowLocks())
	txns := repository.NewTransactionRepository(db, repository.WithoutRowLocks())

	logger := nullLogger()

	h := &harness{
		bookingRepo: bookings,
		paymentRepo: payments,
		receiptRepo: receipts,
		txnRepo:     txns,
		gateway:     &fakeLedger{txns: map[string]*entity.GatewayTransaction{}},
		tasks:       &fakeTasks{},
		events:      &fakeEvents{},
		notifier:    &fakeNotifier{},
		alerter:     &fakeAlerter{},
		store:       &failingStore{ObjectStore: storage.NewLocalStore(t.TempDir())},
		spoolDir:    t.TempDir(),
		hostelID:    hostelID,
		roomID:      roomID,
		occupancy:   func() int { return dbtest.Occupancy(t, db, roomID) },
	}

	renderer, err := receipt.NewRenderer()
	require.NoError(t, err)
	spool, err := storage.NewSpool(h.spoolDir)
	require.NoError(t, err)

	validate := NewValidator()
	h.ledger = NewLedgerService(rooms, logger)
	h.bookings = NewBookingService(bookings, rooms, hostels, h.events, validate, logger)
	h.payments = NewPaymentService(PaymentDeps{
		Payments:     payments,
		Bookings:     bookings,
		Rooms:        rooms,
		Hostels:      hostels,
		Transactions: txns,
		Ledger:       h.gateway,
		Tasks:        h.tasks,
		Events:       h.events,
		Alerter:      h.alerter,
		Validator:    validate,
	}, paymentConfigForTests(), receiptConfigForTests(), logger)

	deps := ReceiptDeps{
		Receipts: receipts,
		Payments: payments,
		Bookings: bookings,
		Rooms:    rooms,
		Hostels:  hostels,
		Renderer: renderer,
		Store:    h.store,
		Spool:    spool,
		Notifier: h.notifier,
		Alerter:  h.alerter,
		Tasks:    h.tasks,
		Events:   h.events,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.receipts = NewReceiptService(deps, receiptConfigForTests(), logger)

	return h
}

func (h *harness) bookingRequest(first string) *CreateBookingRequest {
	return &CreateBookingRequest{
		HostelID:   h.hostelID,
		RoomID:     h.roomID,
		FirstName:  first,
		LastName:   "Okello",
		Email:      first + "@students.mak.ac.ug",
		Phone:      "+256 700-000-001",
		University: "Makerere University",
	}
}

func (h *harness) book(t *testing.T) *entity.Booking {
	t.Helper()
	booking, err := h.bookings.CreateBooking(context.Background(), student, h.bookingRequest("amina"))
	require.NoError(t, err)
	return booking
}

// pay books a slot and completes a settled payment for it
func (h *harness) pay(t *testing.T, txID string) *entity.Payment {
	t.Helper()
	booking := h.book(t)
	h.gateway.settle(txID, 75000000)

	payment, err := h.payments.CreatePayment(context.Background(), student, &CreatePaymentRequest{
		BookingID:     booking.ID,
		Amount:        75000000,
		TransactionID: txID,
		Method:        "mobile_money",
	})
	require.NoError(t, err)
	require.Equal(t, entity.PaymentStatusCompleted, payment.Status)
	return payment
}

func (h *harness) spoolFiles(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(h.spoolDir)
	require.NoError(t, err)
	return entries
}
