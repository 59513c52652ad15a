package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Money
		wantErr bool
	}{
		{name: "whole amount", input: "150", want: 15000},
		{name: "two decimals", input: "150.50", want: 15050},
		{name: "one decimal", input: "150.5", want: 15050},
		{name: "leading dot", input: ".75", want: 75},
		{name: "trailing dot", input: "12.", want: 1200},
		{name: "negative", input: "-3.10", want: -310},
		{name: "surrounding spaces", input: " 1.01 ", want: 101},
		{name: "three decimals rejected", input: "1.005", wantErr: true},
		{name: "letters rejected", input: "12a", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "lone dot rejected", input: ".", wantErr: true},
		{name: "exponent rejected", input: "1e3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "0.00", Money(0).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "1500.00", Money(150000).String())
	assert.Equal(t, "-2.50", Money(-250).String())
	assert.Equal(t, int64(1500), Money(150099).Major())
	assert.Equal(t, int64(99), Money(150099).Minor())
}

func TestMoneyJSON(t *testing.T) {
	var payload struct {
		Amount Money `json:"amount"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"amount": 250.75}`), &payload))
	assert.Equal(t, Money(25075), payload.Amount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount": "99.9"}`), &payload))
	assert.Equal(t, Money(9990), payload.Amount)

	assert.Error(t, json.Unmarshal([]byte(`{"amount": 0.001}`), &payload))

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": "99.90"}`, string(out))
}

func TestMoneyScan(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan(int64(1234)))
	assert.Equal(t, Money(1234), m)

	require.NoError(t, m.Scan([]byte("500")))
	assert.Equal(t, Money(500), m)

	assert.Error(t, m.Scan(1.5))

	v, err := Money(42).Value()
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}
