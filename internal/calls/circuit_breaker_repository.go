package calls

import (
	"context"
	"errors"
	"fmt"

	"telbill/internal/config"
	"telbill/pkg/circuitbreaker"
)

const breakerName = "postgres-calls"

// CircuitBreakerRepository guards a CallStore with a breaker. A missing call
// is an answer, not a failure, so it does not count against the breaker.
type CircuitBreakerRepository struct {
	repo CallStore
	cb   *circuitbreaker.Wrapper
}

func NewCircuitBreakerRepository(repo CallStore, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{repo: repo}
	}

	cbConfig := circuitbreaker.FromConfig(breakerName, cfg)
	cbConfig.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrCallNotFound)
	}

	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.NewWrapper(cbConfig),
	}
}

func (r *CircuitBreakerRepository) Upsert(ctx context.Context, u CallUpdate) error {
	if r.cb == nil {
		return r.repo.Upsert(ctx, u)
	}

	_, err := circuitbreaker.Execute(ctx, r.cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.repo.Upsert(ctx, u)
	})
	return r.wrap(err)
}

func (r *CircuitBreakerRepository) Get(ctx context.Context, callID string) (Call, error) {
	if r.cb == nil {
		return r.repo.Get(ctx, callID)
	}

	call, err := circuitbreaker.Execute(ctx, r.cb, func(ctx context.Context) (Call, error) {
		return r.repo.Get(ctx, callID)
	})
	return call, r.wrap(err)
}

func (r *CircuitBreakerRepository) ClaimCompletion(ctx context.Context, callID, jobID string) (bool, error) {
	if r.cb == nil {
		return r.repo.ClaimCompletion(ctx, callID, jobID)
	}

	claimed, err := circuitbreaker.Execute(ctx, r.cb, func(ctx context.Context) (bool, error) {
		return r.repo.ClaimCompletion(ctx, callID, jobID)
	})
	return claimed, r.wrap(err)
}

func (r *CircuitBreakerRepository) wrap(err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%s: %w", breakerName, err)
	}
	return err
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}
