package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/ratelimit"
)

const defaultRequestsPerSecond = 300

// Client is an http client enforcing a request timeout and a client side
// rate limit shared by all callers.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
}

// NewHTTPClient returns a Client with the given request timeout, capping the
// outgoing rate to requestsPerSecond. A non positive rate falls back to the
// default one.
func NewHTTPClient(timeout time.Duration, requestsPerSecond int) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(requestsPerSecond),
	}
}

// NewHTTPRequest function builds http call
// @param method <string>: http method
// @param url <string>: URL http to call
// @return <string>, error
func (c *Client) NewHTTPRequest(
	method string, url string, bodyString string, header map[string]string,
) (int, string, error) {
	c.limiter.Take()

	switch method {
	case "GET":
		return c.get(url, header)
	case "DELETE":
		return c.delete(url, header)
	case "POST":
		return c.post(url, bodyString, header)
	default:
		return 0, "", fmt.Errorf("verb not supported %s", method)
	}
}

func (c *Client) get(url string, header map[string]string) (int, string, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return 0, "", err
	}

	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.httpClient.Do(req)

	// process response
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", err
	}

	return rs.StatusCode, string(bodyBytes), nil
}

func (c *Client) delete(url string, header map[string]string) (int, string, error) {
	req, err := http.NewRequest("DELETE", url, nil)
	if err != nil {
		return 0, "", err
	}

	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.httpClient.Do(req)

	// process response
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", err
	}

	return rs.StatusCode, string(bodyBytes), nil
}

func (c *Client) post(url string, bodyString string, header map[string]string) (int, string, error) {
	body := strings.NewReader(bodyString)
	req, err := http.NewRequest("POST", url, body)
	if err != nil {
		return 0, "", err
	}

	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", errors.New("failed to send request: " + err.Error())
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(rs.Body)
	if err != nil {
		return 0, "", errors.New("failed to parse response body: " + err.Error())
	}

	return rs.StatusCode, string(bodyBytes), nil
}
