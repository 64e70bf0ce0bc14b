package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleet-view/internal/fleet"
)

var (
	ErrRequestFailed = errors.New("optimization request failed")
	ErrNotConfigured = errors.New("no optimizer configured")
)

// Optimizer is the opaque route optimization collaborator.
type Optimizer interface {
	Optimize(ctx context.Context, req Request) (fleet.OptimizationResult, error)
}

func failed(transport string, err error) error {
	return fmt.Errorf("optimize via %s: %w: %w", transport, ErrRequestFailed, err)
}

type timeoutOptimizer struct {
	next Optimizer
	d    time.Duration
}

// WithTimeout bounds every call to next by d.
func WithTimeout(next Optimizer, d time.Duration) Optimizer {
	if next == nil || d <= 0 {
		return next
	}
	return timeoutOptimizer{next: next, d: d}
}

func (t timeoutOptimizer) Optimize(ctx context.Context, req Request) (fleet.OptimizationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Optimize(ctx, req)
}
