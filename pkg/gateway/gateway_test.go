package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/transactions/TXN-1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"transaction_id":"TXN-1","status":"succeeded","amount":"150000.00","currency":"ugx","recorded_at":"2026-10-19T09:00:00Z"}`))
		case "/transactions/TXN-SLOW":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{}`))
		case "/transactions/TXN-ODD":
			w.Write([]byte(`{"transaction_id":"TXN-ODD","status":"disputed","amount":1}`))
		case "/transactions/TXN-ERR":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPLedgerLookup(t *testing.T) {
	srv := newLedgerServer(t)
	ledger := NewHTTPLedger(srv.URL+"/", "key", nil)

	txn, err := ledger.Lookup(context.Background(), "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, entity.GatewayStatusSettled, txn.Status)
	assert.Equal(t, entity.Money(15000000), txn.Amount)
	assert.Equal(t, "UGX", txn.Currency)
}

func TestHTTPLedgerErrors(t *testing.T) {
	srv := newLedgerServer(t)
	ledger := NewHTTPLedger(srv.URL, "key", nil)

	_, err := ledger.Lookup(context.Background(), "TXN-MISSING")
	assert.ErrorIs(t, err, entity.ErrTransactionNotFound)

	_, err = ledger.Lookup(context.Background(), "TXN-ERR")
	require.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrTransactionNotFound)
	assert.Contains(t, err.Error(), "502")

	_, err = ledger.Lookup(context.Background(), "TXN-ODD")
	assert.ErrorContains(t, err, "unknown status")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ledger.Lookup(ctx, "TXN-SLOW")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubStore map[string]*entity.GatewayTransaction

func (s stubStore) GetByTransactionID(ctx context.Context, id string) (*entity.GatewayTransaction, error) {
	if txn, ok := s[id]; ok {
		return txn, nil
	}
	return nil, entity.ErrTransactionNotFound
}

func TestNewSelectsLedger(t *testing.T) {
	store := stubStore{"TXN-9": {TransactionID: "TXN-9", Status: entity.GatewayStatusPending}}

	ledger, err := New(&config.PaymentConfig{LedgerMode: "table"}, store)
	require.NoError(t, err)
	txn, err := ledger.Lookup(context.Background(), "TXN-9")
	require.NoError(t, err)
	assert.Equal(t, entity.GatewayStatusPending, txn.Status)

	_, err = New(&config.PaymentConfig{LedgerMode: "http"}, store)
	assert.Error(t, err)

	_, err = New(&config.PaymentConfig{LedgerMode: "ftp"}, store)
	assert.Error(t, err)
}
