package esplora

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/keyring-labs/keyringd/pkg/circuitbreaker"
	"github.com/keyring-labs/keyringd/pkg/explorer"
	"github.com/keyring-labs/keyringd/pkg/httputil"
)

const requestsPerSecond = 300

type esplora struct {
	apiURL  string
	client  *httputil.Client
	breaker *gobreaker.CircuitBreaker
}

// NewService returns a new esplora service as an explorer.Service interface.
// The request timeout is expressed in milliseconds.
func NewService(apiURL string, requestTimeout int) (explorer.Service, error) {
	service := &esplora{
		apiURL: apiURL,
		client: httputil.NewHTTPClient(
			time.Duration(requestTimeout)*time.Millisecond, requestsPerSecond,
		),
		breaker: circuitbreaker.NewCircuitBreaker("explorer"),
	}

	if err := service.healthCheck(); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	return service, nil
}

func (e *esplora) healthCheck() error {
	url := fmt.Sprintf("%s/blocks/tip/height", e.apiURL)
	status, resp, err := e.request("GET", url, "", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf(resp)
	}
	return nil
}

type response struct {
	status int
	body   string
}

// request routes every call through the circuit breaker, so that a failing
// explorer trips all callers at once instead of each one timing out on its
// own. Client side errors pass through untouched, they carry the responses
// the callers interpret.
func (e *esplora) request(
	method, url, body string, headers map[string]string,
) (int, string, error) {
	res, err := e.breaker.Execute(func() (interface{}, error) {
		status, resp, err := e.client.NewHTTPRequest(method, url, body, headers)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusInternalServerError {
			return nil, fmt.Errorf(resp)
		}
		return response{status, resp}, nil
	})
	if err != nil {
		return 0, "", err
	}

	r := res.(response)
	return r.status, r.body, nil
}
