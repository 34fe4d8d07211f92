package client

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Transport is the capability the client needs from an HTTP stack.
// Tests substitute a recording transport; production uses *http.Client.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// breakerTransport wraps a Transport with a circuit breaker so a dead
// deployment stops burning the retry and call budgets.
type breakerTransport struct {
	inner   Transport
	breaker *gobreaker.CircuitBreaker
}

func newBreakerTransport(inner Transport) *breakerTransport {
	return &breakerTransport{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "cribl-api",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (t *breakerTransport) Do(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.Execute(func() (interface{}, error) {
		r, err := t.inner.Do(req)
		if err != nil {
			return nil, err
		}
		// HTTP-level responses, including 5xx, do not trip the breaker;
		// only transport failures count.
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.(*http.Response), nil
}
