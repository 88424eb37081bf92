package statemachine

import (
	"testing"

	"kolia/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_Forward(t *testing.T) {
	assert.NoError(t, CanTransition(domain.StatusPending, domain.StatusConfirmed))
	assert.NoError(t, CanTransition(domain.StatusConfirmed, domain.StatusPreparing))
	assert.NoError(t, CanTransition(domain.StatusPreparing, domain.StatusReadyForDelivery))
	assert.NoError(t, CanTransition(domain.StatusReadyForDelivery, domain.StatusOutForDelivery))
	assert.NoError(t, CanTransition(domain.StatusOutForDelivery, domain.StatusDelivered))
	// skipping ahead is allowed
	assert.NoError(t, CanTransition(domain.StatusPending, domain.StatusPreparing))
}

func TestCanTransition_Backward(t *testing.T) {
	assert.Error(t, CanTransition(domain.StatusPreparing, domain.StatusConfirmed))
	assert.Error(t, CanTransition(domain.StatusOutForDelivery, domain.StatusPending))
}

func TestCanTransition_Cancel(t *testing.T) {
	for _, s := range []domain.OrderStatus{
		domain.StatusPending, domain.StatusConfirmed, domain.StatusPreparing,
		domain.StatusReadyForDelivery, domain.StatusOutForDelivery,
	} {
		assert.NoError(t, CanTransition(s, domain.StatusCancelled), s)
	}
}

func TestCanTransition_Terminal(t *testing.T) {
	for _, to := range domain.OrderStatuses {
		assert.Error(t, CanTransition(domain.StatusDelivered, to))
		assert.Error(t, CanTransition(domain.StatusCancelled, to))
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	err := CanTransition(domain.StatusPending, domain.OrderStatus("shipped"))
	assert.ErrorContains(t, err, "unknown status")
}

func TestValidTransitionsFrom(t *testing.T) {
	assert.Equal(t, []domain.OrderStatus{domain.StatusDelivered, domain.StatusCancelled},
		ValidTransitionsFrom(domain.StatusOutForDelivery))
	assert.Empty(t, ValidTransitionsFrom(domain.StatusDelivered))
	assert.Len(t, ValidTransitionsFrom(domain.StatusPending), 6)
}
