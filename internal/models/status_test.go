package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	createdAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{"just created", 0, StatusProcessing},
		{"under a day", 23 * time.Hour, StatusProcessing},
		{"at one day", 24 * time.Hour, StatusConfirmed},
		{"under two days", 47 * time.Hour, StatusConfirmed},
		{"at two days", 48 * time.Hour, StatusShipped},
		{"under four days", 95 * time.Hour, StatusShipped},
		{"at four days", 96 * time.Hour, StatusDelivered},
		{"weeks later", 30 * 24 * time.Hour, StatusDelivered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(createdAt, createdAt.Add(tt.elapsed)))
		})
	}
}

func TestDeriveStatusJumpsMultipleSteps(t *testing.T) {
	// A first read after a long gap must land on the final derived state
	// directly, no intermediate writes required.
	createdAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, StatusDelivered, DeriveStatus(createdAt, createdAt.Add(10*24*time.Hour)))
}

func TestStatusFrozen(t *testing.T) {
	frozen := []string{StatusCancelled, StatusReturnRequested, StatusReturnCompleted}
	for _, s := range frozen {
		assert.True(t, StatusFrozen(s), s)
	}
	moving := []string{StatusProcessing, StatusConfirmed, StatusShipped, StatusDelivered, StatusCompleted}
	for _, s := range moving {
		assert.False(t, StatusFrozen(s), s)
	}
}

func TestCancellable(t *testing.T) {
	assert.True(t, Cancellable(StatusProcessing))
	assert.True(t, Cancellable(StatusConfirmed))
	assert.True(t, Cancellable(StatusShipped))
	assert.False(t, Cancellable(StatusDelivered))
	assert.False(t, Cancellable(StatusCancelled))
	assert.False(t, Cancellable(StatusReturnRequested))
}

func TestReturnable(t *testing.T) {
	assert.True(t, Returnable(StatusDelivered))
	assert.True(t, Returnable(StatusCompleted))
	assert.False(t, Returnable(StatusShipped))
	assert.False(t, Returnable(StatusCancelled))
}

func TestDeriveReturnStep(t *testing.T) {
	requestedAt := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    ReturnStep
	}{
		{"immediately picked up", 0, ReturnStepPickedUp},
		{"under a day", 23 * time.Hour, ReturnStepPickedUp},
		{"processing", 24 * time.Hour, ReturnStepProcessed},
		{"still processing", 47 * time.Hour, ReturnStepProcessed},
		{"credited", 48 * time.Hour, ReturnStepCredited},
		{"long after", 100 * time.Hour, ReturnStepCredited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveReturnStep(requestedAt, requestedAt.Add(tt.elapsed)))
		})
	}
}

func TestReturnCreditDue(t *testing.T) {
	requestedAt := time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)
	matured := requestedAt.Add(48 * time.Hour)

	assert.False(t, ReturnCreditDue(nil, matured))

	ri := &ReturnInfo{RefundTo: RefundToWallet, RequestedAt: requestedAt, ScheduledCredit: true}
	assert.False(t, ReturnCreditDue(ri, requestedAt.Add(47*time.Hour)))
	assert.True(t, ReturnCreditDue(ri, matured))

	credited := *ri
	credited.Credited = true
	assert.False(t, ReturnCreditDue(&credited, matured))

	external := *ri
	external.RefundTo = RefundToOriginalSource
	external.ScheduledCredit = false
	assert.False(t, ReturnCreditDue(&external, matured))
}

func TestTransactionSigned(t *testing.T) {
	assert.Equal(t, int64(-500), Transaction{Type: TransactionTypeDebit, Amount: 500}.Signed())
	assert.Equal(t, int64(500), Transaction{Type: TransactionTypeCredit, Amount: 500}.Signed())
	assert.Equal(t, int64(500), Transaction{Type: TransactionTypeRefund, Amount: 500}.Signed())
}
