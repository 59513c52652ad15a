package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulebil/UniHostel/internal/entity"
)

type httpLedger struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPLedger queries GET {baseURL}/transactions/{id}. The caller's context
// bounds every request; client may be nil.
func NewHTTPLedger(baseURL, apiKey string, client *http.Client) Ledger {
	if client == nil {
		client = &http.Client{}
	}
	return &httpLedger{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type transactionResponse struct {
	TransactionID string       `json:"transaction_id"`
	Status        string       `json:"status"`
	Amount        entity.Money `json:"amount"`
	Currency      string       `json:"currency"`
	RecordedAt    time.Time    `json:"recorded_at"`
}

func (l *httpLedger) Lookup(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error) {
	endpoint := l.baseURL + "/transactions/" + url.PathEscape(transactionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, entity.ErrTransactionNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ledger returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload transactionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode ledger response: %w", err)
	}

	status := entity.GatewayStatus(strings.ToLower(payload.Status))
	switch status {
	case entity.GatewayStatusSettled, entity.GatewayStatusPending, entity.GatewayStatusFailed:
	case "succeeded", "completed":
		status = entity.GatewayStatusSettled
	default:
		return nil, fmt.Errorf("ledger returned unknown status %q", payload.Status)
	}

	return &entity.GatewayTransaction{
		TransactionID: payload.TransactionID,
		Status:        status,
		Amount:        payload.Amount,
		Currency:      strings.ToUpper(payload.Currency),
		RecordedAt:    payload.RecordedAt,
	}, nil
}
