package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"shopper-service/internal/models"
	"shopper-service/internal/util"
)

// PaymentGateway charges an external payment instrument. Implementations
// must treat the context deadline as a hard cutoff: an expired charge is a
// failure, never a pending state.
type PaymentGateway interface {
	Charge(ctx context.Context, amount int64) error
}

// SimulatedGateway stands in for a real payment provider: a fixed delay
// followed by a coin flip at the configured success rate.
type SimulatedGateway struct {
	successRate float64
	delay       time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedGateway creates a simulated gateway
func NewSimulatedGateway(successRate float64, delay time.Duration) *SimulatedGateway {
	return &SimulatedGateway{
		successRate: successRate,
		delay:       delay,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Charge simulates charging the instrument
func (g *SimulatedGateway) Charge(ctx context.Context, amount int64) error {
	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentLatency.Observe(time.Since(start).Seconds())
	}()

	select {
	case <-ctx.Done():
		util.PaymentFailedTotal.Inc()
		return fmt.Errorf("%w: gateway timed out: %v", models.ErrPaymentFailed, ctx.Err())
	case <-time.After(g.delay):
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	g.mu.Unlock()

	if roll >= g.successRate {
		util.PaymentFailedTotal.Inc()
		return fmt.Errorf("%w: gateway declined charge of %d", models.ErrPaymentFailed, amount)
	}
	return nil
}
