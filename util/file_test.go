package util

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h, color.RGBA{R: 200, A: 255}), nil))
	return buf.Bytes()
}

func TestSupportedExt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"a.png", true},
		{"a.JPG", true},
		{"a.jpeg", true},
		{"a.webp", true},
		{"a.bmp", true},
		{"a.tif", true},
		{"a.TIFF", true},
		{"a.nef", true},
		{"a.ARW", true},
		{"a.cr3", true},
		{"a.gif", false},
		{"a.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SupportedExt(tt.path), tt.path)
	}
	assert.True(t, IsRaw("x.NEF"))
	assert.False(t, IsRaw("x.png"))
}

func TestOpenImage_Formats(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := solid(8, 6, color.RGBA{G: 255, A: 255})

	encoders := map[string]func(f *os.File) error{
		"a.png":  func(f *os.File) error { return png.Encode(f, src) },
		"a.bmp":  func(f *os.File) error { return bmp.Encode(f, src) },
		"a.tiff": func(f *os.File) error { return tiff.Encode(f, src, nil) },
		"a.jpg":  func(f *os.File) error { return jpeg.Encode(f, src, nil) },
	}

	for name, enc := range encoders {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, enc(f))
		require.NoError(t, f.Close())

		img, err := OpenImage(context.Background(), path, nil)
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds(), name)
	}
}

func TestOpenImage_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := OpenImage(context.Background(), filepath.Join(dir, "notes.txt"), nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not a png"), 0o644))
	_, err = OpenImage(context.Background(), broken, nil)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = OpenImage(context.Background(), filepath.Join(dir, "missing.png"), nil)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestOpenImage_RawFallsBackToPreview(t *testing.T) {
	t.Parallel()

	var data []byte
	data = append(data, []byte("II*\x00 fake raw header")...)
	data = append(data, jpegBytes(t, 16, 12)...)
	data = append(data, bytes.Repeat([]byte{0x00, 0xFF}, 64)...)
	data = append(data, jpegBytes(t, 64, 48)...)
	data = append(data, []byte("trailing sensor data")...)

	path := filepath.Join(t.TempDir(), "DSC_0001.NEF")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	conv := &RawConverter{Command: "removebg-square-no-such-converter"}
	img, err := OpenImage(context.Background(), path, conv)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())
}

func TestEmbeddedPreview_None(t *testing.T) {
	t.Parallel()

	_, err := EmbeddedPreview([]byte("no jpeg in here \xFF\xD8\xFF but broken"))
	assert.Error(t, err)
}

func TestToNRGBA_ResetsOrigin(t *testing.T) {
	t.Parallel()

	src := image.NewNRGBA(image.Rect(10, 20, 14, 23))
	src.Set(10, 20, color.NRGBA{R: 1, G: 2, B: 3, A: 255})

	got := ToNRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, got.NRGBAAt(0, 0))
}

func TestSavePNG(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, SavePNG(solid(3, 2, color.White), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
