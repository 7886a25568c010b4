// Package rembgtest runs a fake remove.bg API for tests.
package rembgtest

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
)

// Server answers /v1.0/removebg. By default it returns the uploaded image with
// every pixel outside the centre half made transparent.
type Server struct {
	*httptest.Server

	apiKey string

	mu      sync.Mutex
	fail    map[int]int
	calls   int
	uploads []Upload
}

type Upload struct {
	Size   string
	Format string
	Width  int
	Height int
}

// NewServer starts the fake API. A non-empty apiKey is required in X-Api-Key.
func NewServer(apiKey string) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{apiKey: apiKey, fail: map[int]int{}}
	r := gin.New()
	r.POST("/v1.0/removebg", s.removeBG)
	s.Server = httptest.NewServer(r)
	return s
}

// FailCall makes the n-th call (1-based) answer with status.
func (s *Server) FailCall(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[n] = status
}

func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

func (s *Server) removeBG(c *gin.Context) {
	s.mu.Lock()
	s.calls++
	status, fail := s.fail[s.calls]
	s.mu.Unlock()

	if s.apiKey != "" && c.GetHeader("X-Api-Key") != s.apiKey {
		c.JSON(http.StatusForbidden, gin.H{"errors": []gin.H{{"title": "Forbidden"}}})
		return
	}
	if fail {
		c.JSON(status, gin.H{"errors": []gin.H{{"title": http.StatusText(status)}}})
		return
	}

	fh, err := c.FormFile("image_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"title": "No image given"}}})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"title": err.Error()}}})
		return
	}
	defer func() {
		_ = f.Close()
	}()
	data, _ := io.ReadAll(f)

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []gin.H{{"title": "Failed to read image"}}})
		return
	}

	b := img.Bounds()
	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{
		Size:   c.PostForm("size"),
		Format: c.PostForm("format"),
		Width:  b.Dx(),
		Height: b.Dy(),
	})
	s.mu.Unlock()

	var buf bytes.Buffer
	_ = png.Encode(&buf, Cutout(img))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// Cutout keeps the centre half of img and clears the rest.
func Cutout(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	keep := image.Rect(b.Dx()/4, b.Dy()/4, b.Dx()*3/4, b.Dy()*3/4)
	if keep.Empty() {
		keep = out.Bounds()
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if !image.Pt(x, y).In(keep) {
				continue
			}
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = 255
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
