package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"nightlife-matching-service/internal/metrics"
)

const storeBreakerName = "match-stores"

// newStoreBreaker opens after 60% of at least 10 fetches fail within a
// minute and tries again after 30 seconds. Missing rows and caller
// cancellations are not failures.
func newStoreBreaker() *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(storeBreakerName).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        storeBreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		IsSuccessful: healthyResult,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
}

// guarded runs one store call through the breaker.
func guarded[T any](s *MatchingService, fn func() (T, error)) (T, error) {
	v, err := s.breaker.Execute(func() (any, error) {
		return fn()
	})

	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "rejected"
	case !healthyResult(err):
		result = "failure"
	}
	metrics.CircuitBreakerRequests.WithLabelValues(storeBreakerName, result).Inc()

	t, _ := v.(T)
	return t, err
}

func healthyResult(err error) bool {
	return err == nil || errors.Is(err, sql.ErrNoRows) || errors.Is(err, context.Canceled)
}

func stateValue(st gobreaker.State) float64 {
	switch st {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
