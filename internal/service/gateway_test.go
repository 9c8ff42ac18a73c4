package service

import (
	"context"
	"testing"
	"time"

	"shopper-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedGatewayAlwaysSucceeds(t *testing.T) {
	gateway := NewSimulatedGateway(1.0, 0)
	for i := 0; i < 20; i++ {
		assert.NoError(t, gateway.Charge(context.Background(), 1000))
	}
}

func TestSimulatedGatewayAlwaysDeclines(t *testing.T) {
	gateway := NewSimulatedGateway(0.0, 0)
	for i := 0; i < 20; i++ {
		err := gateway.Charge(context.Background(), 1000)
		assert.ErrorIs(t, err, models.ErrPaymentFailed)
	}
}

func TestSimulatedGatewayTimeoutIsFailure(t *testing.T) {
	gateway := NewSimulatedGateway(1.0, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := gateway.Charge(ctx, 1000)
	assert.ErrorIs(t, err, models.ErrPaymentFailed)
}
