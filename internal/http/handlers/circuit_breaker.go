package handlers

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/playarr/pkg/httpclient"
)

// CircuitBreaker is an upstream client guarded by a circuit breaker.
type CircuitBreaker interface {
	CircuitState() httpclient.CircuitState
	CircuitFailures() int
	ResetCircuit()
}

// CircuitBreakerHandler reports and resets the circuit breakers of the
// upstream clients.
type CircuitBreakerHandler struct {
	breakers map[string]CircuitBreaker
}

// NewCircuitBreakerHandler creates a handler over the named breakers.
func NewCircuitBreakerHandler(breakers map[string]CircuitBreaker) *CircuitBreakerHandler {
	return &CircuitBreakerHandler{breakers: breakers}
}

// Register registers the circuit breaker routes with the API.
func (h *CircuitBreakerHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listCircuitBreakers",
		Method:      http.MethodGet,
		Path:        "/api/v1/circuit-breakers",
		Summary:     "List circuit breakers",
		Description: "Returns the state of each upstream circuit breaker",
		Tags:        []string{"Circuit Breakers"},
	}, h.ListCircuitBreakers)

	huma.Register(api, huma.Operation{
		OperationID: "resetCircuitBreaker",
		Method:      http.MethodPost,
		Path:        "/api/v1/circuit-breakers/{name}/reset",
		Summary:     "Reset a circuit breaker",
		Description: "Resets a specific circuit breaker to closed state",
		Tags:        []string{"Circuit Breakers"},
	}, h.ResetCircuitBreaker)
}

// CircuitBreakerStatus is the current state of one breaker.
type CircuitBreakerStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures int    `json:"failures"`
}

// ListCircuitBreakersInput is the input for listing breakers.
type ListCircuitBreakersInput struct{}

// ListCircuitBreakersOutput is the output for listing breakers.
type ListCircuitBreakersOutput struct {
	Body struct {
		Breakers []CircuitBreakerStatus `json:"breakers"`
	}
}

// ListCircuitBreakers returns every breaker ordered by name.
func (h *CircuitBreakerHandler) ListCircuitBreakers(_ context.Context, _ *ListCircuitBreakersInput) (*ListCircuitBreakersOutput, error) {
	out := &ListCircuitBreakersOutput{}
	out.Body.Breakers = make([]CircuitBreakerStatus, 0, len(h.breakers))
	for _, name := range slices.Sorted(maps.Keys(h.breakers)) {
		out.Body.Breakers = append(out.Body.Breakers, breakerStatus(name, h.breakers[name]))
	}
	return out, nil
}

// ResetCircuitBreakerInput is the input for resetting a breaker.
type ResetCircuitBreakerInput struct {
	Name string `path:"name" required:"true"`
}

// ResetCircuitBreakerOutput is the output for resetting a breaker.
type ResetCircuitBreakerOutput struct {
	Body struct {
		Breaker   CircuitBreakerStatus `json:"breaker"`
		Timestamp string               `json:"timestamp"`
	}
}

// ResetCircuitBreaker closes the named breaker.
func (h *CircuitBreakerHandler) ResetCircuitBreaker(_ context.Context, input *ResetCircuitBreakerInput) (*ResetCircuitBreakerOutput, error) {
	cb, ok := h.breakers[input.Name]
	if !ok {
		return nil, huma.Error404NotFound("circuit breaker not found: " + input.Name)
	}
	cb.ResetCircuit()

	out := &ResetCircuitBreakerOutput{}
	out.Body.Breaker = breakerStatus(input.Name, cb)
	out.Body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return out, nil
}

func breakerStatus(name string, cb CircuitBreaker) CircuitBreakerStatus {
	return CircuitBreakerStatus{
		Name:     name,
		State:    cb.CircuitState().String(),
		Failures: cb.CircuitFailures(),
	}
}
