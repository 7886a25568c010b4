package http

import (
	"context"
	"io"
	"time"
)

type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam describes one request.
//
// Response, when set, receives the raw body of a 2xx answer. Timeout bounds
// the whole request; zero means the client's default.
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       io.Reader
	Response   *[]byte

	Timeout time.Duration
}
