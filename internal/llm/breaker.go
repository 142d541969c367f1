package llm

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/askql/askql/internal/errors"
	"github.com/askql/askql/internal/logging"
)

// BreakerConfig controls when the circuit around the model API opens.
type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultBreakerConfig trips after sustained failures and probes recovery
// after 30 seconds.
var DefaultBreakerConfig = BreakerConfig{
	MaxRequests: 1,
	Interval:    10 * time.Second,
	Timeout:     30 * time.Second,
}

// BreakerClient wraps a Client with circuit breaker protection so a
// misbehaving model API fails fast instead of stacking up timeouts.
type BreakerClient struct {
	client  Client
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerClient(client Client, name string, config BreakerConfig, logger *logging.Logger) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && (counts.ConsecutiveFailures >= 5 || failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}

	return &BreakerClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (cb *BreakerClient) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		return cb.client.Complete(ctx, prompt, temperature)
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrTypeModel, "model request blocked or failed")
	}

	return result.(string), nil
}

// State returns the current breaker state.
func (cb *BreakerClient) State() gobreaker.State {
	return cb.breaker.State()
}
