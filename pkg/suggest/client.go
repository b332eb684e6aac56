package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	rlerrors "github.com/odvcencio/redline/pkg/errors"
)

const (
	streamPath     = "/chat/completions/stream"
	defaultTimeout = 5 * time.Minute
	readChunkSize  = 4096
)

// DefaultTransport returns an http.Transport tuned for long-lived
// streaming requests.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DisableKeepAlives:     false,
		DisableCompression:    false,
	}
}

// Client is a suggestion provider client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOptions configures optional client behavior.
type ClientOptions struct {
	// RequestsPerSec enables client-side rate limiting when positive.
	RequestsPerSec float64
	// Timeout bounds the whole request including the streamed read.
	Timeout time.Duration
}

// NewClient creates a provider client against baseURL.
func NewClient(apiKey, baseURL string) *Client {
	return NewClientWithOptions(apiKey, baseURL, ClientOptions{})
}

// NewClientWithOptions creates a provider client with explicit options.
func NewClientWithOptions(apiKey, baseURL string, opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: DefaultTransport(),
			Timeout:   timeout,
		},
		limiter: limiter,
	}
}

// Stream sends the edit request and returns the response as a sequence of
// text chunks. The chunk channel closes when the stream ends; a transport
// or status failure arrives on the error channel. The stream is finite and
// non-restartable; abandoning the channels after ctx cancellation is the
// only way to stop a read in flight.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(chunks)

		if err := c.execute(ctx, req, chunks); err != nil {
			errs <- err
		}
	}()

	return chunks, errs
}

func (c *Client) execute(ctx context.Context, req Request, chunks chan<- string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return rlerrors.Wrap(err, rlerrors.ErrCodeProviderTransport, "rate limiter wait failed")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeInvalidInput, "marshaling edit request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+streamPath, bytes.NewReader(body))
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeProviderTransport, "building provider request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return rlerrors.Wrap(err, rlerrors.ErrCodeProviderTransport, "provider request failed").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return rlerrors.New(rlerrors.ErrCodeProviderStatus,
			fmt.Sprintf("provider returned status %d", resp.StatusCode)).
			WithContext("body", strings.TrimSpace(string(detail))).
			WithRetryable(resp.StatusCode >= 500)
	}

	buf := make([]byte, readChunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			select {
			case chunks <- string(buf[:n]):
			case <-ctx.Done():
				return rlerrors.Wrap(ctx.Err(), rlerrors.ErrCodeProviderStream, "stream canceled")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return rlerrors.Wrap(err, rlerrors.ErrCodeProviderStream, "reading provider stream").WithRetryable(true)
		}
	}
}
