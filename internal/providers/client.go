package providers

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultTimeout = 10 * time.Second
	UserAgent      = "lyrisync/1.0"
)

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

// SharedClient is the process-wide client every provider uses unless a
// test substitutes its own.
func SharedClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		}
		httpClient = &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		}
	})
	return httpClient
}

type response struct {
	status int
	body   []byte
}

// get performs one request and reads the whole body. every failure before
// a status line arrives, or while reading the body, is a transport error.
func get(ctx context.Context, client *http.Client, provider string, requestURL string, header http.Header) (*response, error) {
	if client == nil {
		client = SharedClient()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, apiError(provider, "failed to build http request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(provider, fmt.Errorf("failed to read response: %w", err))
	}

	return &response{status: resp.StatusCode, body: body}, nil
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
