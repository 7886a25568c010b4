package rembg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/removebg-square/rembg/rembgtest"
	nhttp "github.com/chaos-io/removebg-square/util/http"
)

func photo(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func TestRemoveBG_Remove(t *testing.T) {
	t.Parallel()

	srv := rembgtest.NewServer("secret")
	defer srv.Close()

	r := NewRemoveBG("secret", WithBaseURL(srv.URL+"/"), WithSize(SizePreview))
	got, err := r.Remove(context.Background(), photo(40, 20))
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 40, 20), got.Bounds())
	_, _, _, a := got.At(0, 0).RGBA()
	assert.Zero(t, a)
	_, _, _, a = got.At(20, 10).RGBA()
	assert.NotZero(t, a)

	uploads := srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "preview", uploads[0].Size)
	assert.Equal(t, "png", uploads[0].Format)
	assert.Equal(t, 40, uploads[0].Width)
}

func TestRemoveBG_StatusErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusPaymentRequired, http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv := rembgtest.NewServer("")
		srv.FailCall(1, status)

		_, err := NewRemoveBG("k", WithBaseURL(srv.URL)).Remove(context.Background(), photo(8, 8))
		srv.Close()

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr), "status %d: %v", status, err)
		assert.Equal(t, status, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, http.StatusText(status))
		assert.ErrorIs(t, err, ErrRemoteAPI)
	}
}

func TestRemoveBG_WrongKey(t *testing.T) {
	t.Parallel()

	srv := rembgtest.NewServer("right")
	defer srv.Close()

	_, err := NewRemoveBG("wrong", WithBaseURL(srv.URL)).Remove(context.Background(), photo(8, 8))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestRemoveBG_TransportError(t *testing.T) {
	t.Parallel()

	srv := rembgtest.NewServer("")
	url := srv.URL
	srv.Close()

	_, err := NewRemoveBG("k", WithBaseURL(url)).Remove(context.Background(), photo(8, 8))
	assert.ErrorIs(t, err, ErrRemoteAPI)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

// recordingClient 记录请求参数，返回固定的抠图
type recordingClient struct {
	param  *nhttp.RequestParam
	cutout []byte
}

func (c *recordingClient) DoHTTPRequest(_ context.Context, param *nhttp.RequestParam) error {
	c.param = param
	*param.Response = c.cutout
	return nil
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRemoveBG_RequestShape(t *testing.T) {
	t.Parallel()

	cli := &recordingClient{cutout: encodePNG(t, rembgtest.Cutout(photo(10, 10)))}
	r := NewRemoveBG("secret", WithBaseURL("https://example.test/"), WithSize(SizeFull), WithClient(cli))

	got, err := r.Remove(context.Background(), photo(10, 10))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), got.Bounds())

	require.NotNil(t, cli.param)
	assert.Equal(t, "https://example.test/v1.0/removebg", cli.param.RequestURI)
	assert.Equal(t, "POST", cli.param.Method)
	assert.Equal(t, "secret", cli.param.Header["X-Api-Key"])
	assert.Contains(t, cli.param.Header["Content-Type"], "multipart/form-data")
	assert.Equal(t, 60*time.Second, cli.param.Timeout)
}

func TestRemoveBG_SlowResponseWithinRequestTimeout(t *testing.T) {
	t.Parallel()

	cutout := encodePNG(t, rembgtest.Cutout(photo(8, 8)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(cutout)
	}))
	defer srv.Close()

	// 客户端默认超时短于响应时间，remove.bg 的单次请求超时仍然生效
	cli := nhttp.NewHTTPClient(nhttp.WithDefaultTimeout(50 * time.Millisecond))
	_, err := NewRemoveBG("k", WithBaseURL(srv.URL), WithClient(cli)).Remove(context.Background(), photo(8, 8))
	assert.NoError(t, err)
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Size{"": SizeAuto, "auto": SizeAuto, "Preview": SizePreview, " full ": SizeFull} {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSize("4k")
	assert.Error(t, err)
}
