package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/removebg-square/canvas"
	"github.com/chaos-io/removebg-square/rembg"
	"github.com/chaos-io/removebg-square/util"
	"github.com/chaos-io/removebg-square/xmp"
)

// TagOptions XMP 打标设置
type TagOptions struct {
	Enabled bool
	Tool    string
	Sidecar bool
}

type Options struct {
	InputDir  string
	OutputDir string
	// BadDir 失败文件的副本和错误说明，空字符串表示不复制
	BadDir       string
	Canvas       canvas.Spec
	SkipExisting bool
	Tag          TagOptions
	Raw          *util.RawConverter

	Logger *slog.Logger
	Now    func() time.Time
}

// Pipeline 顺序处理目录中的图片：解码 → 去背景 → 合成画布 → 写出 PNG
type Pipeline struct {
	opts    Options
	remover rembg.Remover
	logger  *slog.Logger
}

func New(remover rembg.Remover, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Raw == nil {
		opts.Raw = util.NewRawConverter()
	}
	if opts.Tag.Tool == "" {
		opts.Tag.Tool = xmp.DefaultTool
	}
	return &Pipeline{opts: opts, remover: remover, logger: opts.Logger}
}

// Discover 列出输入目录（不递归）下的文件，按名称排序。
// 不支持的扩展名直接作为 skipped 结果返回。
func (p *Pipeline) Discover() ([]Job, []Result, error) {
	entries, err := os.ReadDir(p.opts.InputDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read input dir: %w", err)
	}

	var jobs []Job
	var skips []Result

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Type().IsRegular():
			names = append(names, e.Name())
		case e.Type()&os.ModeSymlink != 0:
			// 跟随符号链接，指向普通文件时按普通文件处理
			in := filepath.Join(p.opts.InputDir, e.Name())
			info, err := os.Stat(in)
			if err != nil {
				skips = append(skips, skipped(Job{Input: in}, "broken_symlink", err))
				continue
			}
			if info.Mode().IsRegular() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)

	used := map[string]bool{}
	for _, name := range names {
		in := filepath.Join(p.opts.InputDir, name)
		if !util.SupportedExt(name) {
			skips = append(skips, skipped(Job{Input: in}, "unsupported_format",
				fmt.Errorf("%s: %w", name, util.ErrUnsupportedFormat)))
			continue
		}

		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		out := stem + ".png"
		if used[strings.ToLower(out)] {
			// a.jpg 和 a.png 同名时后者输出为 a_png.png
			out = stem + "_" + strings.ToLower(strings.TrimPrefix(ext, ".")) + ".png"
		}
		used[strings.ToLower(out)] = true
		jobs = append(jobs, Job{Input: in, Output: filepath.Join(p.opts.OutputDir, out)})
	}
	return jobs, skips, nil
}

// Run 处理全部 Job。单个 Job 失败只记录结果，不影响其余 Job；
// 只有目录无法创建/读取或 ctx 被取消时返回 error。
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	if err := p.opts.Canvas.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.opts.InputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create input dir: %w", err)
	}
	if err := os.MkdirAll(p.opts.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	summary := &Summary{RunID: ksuid.New().String(), StartedAt: p.opts.Now()}
	logger := p.logger.With("run_id", summary.RunID)
	start := time.Now()
	defer func() {
		summary.Seconds = time.Since(start).Seconds()
	}()

	jobs, skips, err := p.Discover()
	if err != nil {
		return nil, err
	}
	for _, r := range skips {
		logger.Info("skipped", "src", r.Input, "reason", r.Reason)
		summary.add(r)
	}
	if len(jobs) == 0 {
		logger.Info("no input files found", "input_dir", p.opts.InputDir)
		return summary, nil
	}

	logger.Info("batch started", "files", len(jobs), "canvas", p.opts.Canvas.String())
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		logger.Info(fmt.Sprintf("[%d/%d] processing", i+1, len(jobs)), "src", job.Input)
		r := p.Process(ctx, job)
		summary.add(r)

		switch r.Status {
		case StatusProcessed:
			logger.Info("wrote", "dest", r.Output, "seconds", fmt.Sprintf("%.2f", r.Seconds))
		case StatusSkipped:
			logger.Info("skipped", "src", job.Input, "reason", r.Reason)
		case StatusFailed:
			logger.Warn("failed", "src", job.Input, "stage", r.Stage, "error", r.Error)
		}
	}

	logger.Info("batch finished",
		"processed", summary.Processed, "failed", summary.Failed, "skipped", summary.Skipped,
		"seconds", fmt.Sprintf("%.2f", time.Since(start).Seconds()))
	return summary, nil
}

// Process 处理单个 Job
func (p *Pipeline) Process(ctx context.Context, job Job) (r Result) {
	start := time.Now()
	defer func() {
		r.Seconds = time.Since(start).Seconds()
		if r.Status == StatusFailed {
			r.BadCopy = p.copyToBad(job, r)
		}
	}()

	if p.opts.SkipExisting {
		if _, err := os.Stat(job.Output); err == nil {
			return skipped(job, "output_exists", nil)
		}
	}

	img, err := util.OpenImage(ctx, job.Input, p.opts.Raw)
	if err != nil {
		if errors.Is(err, util.ErrUnsupportedFormat) {
			return skipped(job, "unsupported_format", err)
		}
		return failed(job, StageNormalize, "normalize_failed", err)
	}

	cutout, err := p.remover.Remove(ctx, img)
	if err != nil {
		reason := "removebg_request_failed"
		var apiErr *rembg.APIError
		if errors.As(err, &apiErr) {
			reason = fmt.Sprintf("removebg_http_%d", apiErr.StatusCode)
		}
		return failed(job, StageRemove, reason, err)
	}

	out, err := canvas.Composite(cutout, p.opts.Canvas)
	if err != nil {
		reason := "canvas_paste_failed"
		if errors.Is(err, canvas.ErrEmptyCutout) {
			reason = "empty_cutout"
		}
		return failed(job, StageComposite, reason, err)
	}

	if err := util.SavePNG(out, job.Output); err != nil {
		return failed(job, StageSave, "save_failed", err)
	}

	if p.opts.Tag.Enabled {
		if err := xmp.Tag(job.Output, p.opts.Tag.Tool, p.opts.Now(), p.opts.Tag.Sidecar); err != nil {
			p.logger.Warn("xmp tag failed", "dest", job.Output, "error", err)
		}
	}

	return Result{Job: job, Status: StatusProcessed}
}
