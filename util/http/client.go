package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 2000
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d: %s", e.StatusCode, e.Body)
}

type HTTPClient struct {
	// 超时只由 ctx 控制，http.Client 本身不设 Timeout，否则会截断更长的单次请求超时
	client  *http.Client
	timeout time.Duration
}

type ClientOption func(*HTTPClient)

// WithDefaultTimeout 请求未指定 Timeout 时使用的超时
func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.timeout = d
	}
}

func NewHTTPClient(opts ...ClientOption) IClient {
	c := &HTTPClient{
		client:  &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error {
	if requestParam == nil {
		return errors.New("request param is nil")
	}

	timeout := c.timeout
	if requestParam.Timeout > 0 {
		timeout = requestParam.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, requestParam.Method, requestParam.RequestURI, requestParam.Body)
	if err != nil {
		return err
	}
	for k, v := range requestParam.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	slog.Debug("http response", "method", requestParam.Method, "uri", requestParam.RequestURI,
		"status", resp.StatusCode, "bytes", len(data))

	if requestParam.Response != nil {
		*requestParam.Response = data
	}
	return nil
}
