package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/image/tiff"
)

const maxPreviewCandidates = 64

// RawConverter 调用外部 RAW 转换器（默认 dcraw），输出 8 位 TIFF 到 stdout。
// 转换器不可用或失败时，退回到 RAW 容器内嵌的最大 JPEG 预览图。
type RawConverter struct {
	Command string
	Args    []string
}

// NewRawConverter 相机白平衡、不自动提亮、8 位输出
func NewRawConverter() *RawConverter {
	return &RawConverter{
		Command: "dcraw",
		Args:    []string{"-c", "-w", "-W", "-T"},
	}
}

func (r *RawConverter) Decode(ctx context.Context, path string) (image.Image, error) {
	img, convErr := r.convert(ctx, path)
	if convErr == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	slog.Debug("raw converter failed, trying embedded preview", "path", path, "error", convErr)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read raw file: %w", err)
	}
	img, err = EmbeddedPreview(data)
	if err != nil {
		return nil, fmt.Errorf("convert raw: %v; %w", convErr, err)
	}
	return img, nil
}

func (r *RawConverter) convert(ctx context.Context, path string) (image.Image, error) {
	if r.Command == "" {
		return nil, errors.New("no raw converter configured")
	}
	bin, err := exec.LookPath(r.Command)
	if err != nil {
		return nil, err
	}

	args := append(append([]string{}, r.Args...), path)
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.Command, err, strings.TrimSpace(stderr.String()))
	}

	img, err := tiff.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode %s output: %w", r.Command, err)
	}
	return img, nil
}

// EmbeddedPreview 在 RAW 数据中查找内嵌 JPEG，返回像素面积最大的一张
func EmbeddedPreview(data []byte) (image.Image, error) {
	soi := []byte{0xFF, 0xD8, 0xFF}

	best, bestArea := -1, 0
	offset, tried := 0, 0
	for tried < maxPreviewCandidates {
		i := bytes.Index(data[offset:], soi)
		if i < 0 {
			break
		}
		start := offset + i
		offset = start + len(soi)
		tried++

		cfg, err := jpeg.DecodeConfig(bytes.NewReader(data[start:]))
		if err != nil {
			continue
		}
		if area := cfg.Width * cfg.Height; area > bestArea {
			best, bestArea = start, area
		}
	}

	if best < 0 {
		return nil, errors.New("no embedded jpeg preview")
	}
	return jpeg.Decode(bytes.NewReader(data[best:]))
}
