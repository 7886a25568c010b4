package rembg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

// Remover 去除背景，返回主体抠图（透明背景）
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

var ErrRemoteAPI = errors.New("remote api failure")

// APIError 远端返回非 2xx
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remove.bg HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrRemoteAPI
}

// Size remove.bg 的 size 参数
type Size string

const (
	SizeAuto    Size = "auto"
	SizePreview Size = "preview"
	SizeFull    Size = "full"
)

func ParseSize(s string) (Size, error) {
	switch v := Size(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SizeAuto, nil
	case SizeAuto, SizePreview, SizeFull:
		return v, nil
	default:
		return "", fmt.Errorf("invalid remove size %q (want auto, preview or full)", s)
	}
}
