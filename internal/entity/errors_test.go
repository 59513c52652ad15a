package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "sentinel", err: ErrRoomFull, want: KindCapacityExceeded},
		{name: "wrapped sentinel", err: fmt.Errorf("reserve room 7: %w", ErrRoomFull), want: KindCapacityExceeded},
		{name: "validation helper", err: Validation("email %q is invalid", "x"), want: KindValidation},
		{name: "upstream helper", err: Upstream("ledger lookup", errors.New("timeout")), want: KindUpstreamUnavailable},
		{name: "plain error", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrappedSentinelKeepsIdentity(t *testing.T) {
	err := fmt.Errorf("cancel booking 3: %w", ErrBookingNotFound)
	assert.True(t, errors.Is(err, ErrBookingNotFound))
	assert.False(t, errors.Is(err, ErrRoomNotFound))
	assert.Equal(t, "cancel booking 3: booking not found", err.Error())

	up := Upstream("ledger lookup", errors.New("deadline exceeded"))
	assert.Equal(t, "ledger lookup: deadline exceeded", up.Error())
}
