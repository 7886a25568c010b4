package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/chaos-io/removebg-square/util"
	nhttp "github.com/chaos-io/removebg-square/util/http"
)

const (
	DefaultBaseURL = "https://api.remove.bg"
	removePath     = "/v1.0/removebg"
	requestTimeout = 60 * time.Second
)

// RemoveBG remove.bg API 客户端
type RemoveBG struct {
	baseURL string
	apiKey  string
	size    Size
	cli     nhttp.IClient
}

type Option func(*RemoveBG)

func WithBaseURL(u string) Option {
	return func(r *RemoveBG) {
		if u != "" {
			r.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithSize(s Size) Option {
	return func(r *RemoveBG) {
		if s != "" {
			r.size = s
		}
	}
}

func WithClient(cli nhttp.IClient) Option {
	return func(r *RemoveBG) {
		r.cli = cli
	}
}

func NewRemoveBG(apiKey string, opts ...Option) *RemoveBG {
	r := &RemoveBG{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		size:    SizeAuto,
		cli:     nhttp.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

/*
	curl -H "X-Api-Key: $KEY" \
	  -F "image_file=@image.png" \
	  -F "size=auto" \
	  -F "format=png" \
	  -o cutout.png https://api.remove.bg/v1.0/removebg
*/
func (r *RemoveBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	data, err := util.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	_ = writer.WriteField("size", string(r.size))
	_ = writer.WriteField("format", "png")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var resp []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: r.baseURL + removePath,
		Method:     "POST",
		Header: map[string]string{
			"Content-Type": writer.FormDataContentType(),
			"X-Api-Key":    r.apiKey,
			"Accept":       "image/png",
		},
		Body:     body,
		Response: &resp,
		Timeout:  requestTimeout,
	}

	start := time.Now()
	err = r.cli.DoHTTPRequest(ctx, reqParam)
	if err != nil {
		var statusErr *nhttp.StatusError
		if errors.As(err, &statusErr) {
			return nil, &APIError{StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		}
		return nil, fmt.Errorf("%w: %w", ErrRemoteAPI, err)
	}

	slog.Debug("removebg response", "bytes", len(resp), "size", r.size, "elapsed", time.Since(start))

	cutout, err := util.DecodeImage(bytes.NewReader(resp))
	if err != nil {
		return nil, fmt.Errorf("decode cutout: %w", err)
	}
	return cutout, nil
}
