package huggingface

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"SkeetShelf/internal/metrics"
)

type breaker struct {
	cb *gobreaker.CircuitBreaker[[]byte]
}

// newBreaker opens after 5 consecutive failures and probes again after 30s.
func newBreaker(name string) *breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	return &breaker{cb: cb}
}

func (b *breaker) execute(fn func() ([]byte, error)) ([]byte, error) {
	return b.cb.Execute(fn)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
