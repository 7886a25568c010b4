package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("decode failure")
)

var rasterExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

var rawExts = map[string]bool{
	".nef": true, ".arw": true, ".cr3": true,
}

// SupportedExt 判断扩展名是否可处理（大小写不敏感）
func SupportedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return rasterExts[ext] || rawExts[ext]
}

// IsRaw 判断是否为相机 RAW 文件
func IsRaw(path string) bool {
	return rawExts[strings.ToLower(filepath.Ext(path))]
}

// OpenImage 打开本地图片并统一转换为 NRGBA
func OpenImage(ctx context.Context, path string, raw *RawConverter) (*image.NRGBA, error) {
	if !SupportedExt(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Ext(path), ErrUnsupportedFormat)
	}

	if IsRaw(path) {
		if raw == nil {
			raw = NewRawConverter()
		}
		img, err := raw.Decode(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return ToNRGBA(img), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer func() {
		_ = file.Close()
	}()

	return DecodeImage(file)
}

// DecodeImage 解码任意已注册格式
func DecodeImage(r io.Reader) (*image.NRGBA, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ToNRGBA(img), nil
}

// ToNRGBA 转为 NRGBA，原点归零，方便统一处理
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// EncodePNG 编码为 PNG 字节
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG 写入 PNG 文件，先写临时文件再重命名
func SavePNG(img image.Image, path string) error {
	data, err := EncodePNG(img)
	if err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	return WriteFileAtomic(path, data)
}

func WriteFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
