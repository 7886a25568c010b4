package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/chaos-io/removebg-square/canvas"
	"github.com/chaos-io/removebg-square/config"
	"github.com/chaos-io/removebg-square/credential"
	"github.com/chaos-io/removebg-square/pipeline"
	"github.com/chaos-io/removebg-square/rembg"
	"github.com/chaos-io/removebg-square/util"
)

type runFlags struct {
	configPath   string
	inputDir     string
	outputDir    string
	badDir       string
	preset       string
	outSize      string
	marginLeft   int
	marginRight  int
	marginTop    int
	marginBottom int
	background   string
	removeSize   string
	apiKey       string
	apiBaseURL   string
	report       string
	skipExisting bool
	xmpSidecar   bool
	noXMP        bool
	logLevel     string
}

func registerRunFlags(fs *flag.FlagSet) *runFlags {
	f := &runFlags{}
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default "+config.DefaultPath()+" if present)")
	fs.StringVar(&f.inputDir, "input-dir", "input", "folder of input images")
	fs.StringVar(&f.outputDir, "output-dir", "output", "folder for output images")
	fs.StringVar(&f.badDir, "bad-dir", "", `copy failed inputs here with an _ERROR.txt note (default <output-dir>/bad, "" disables)`)
	fs.StringVar(&f.preset, "preset", "", "canvas preset: square, square-xl, landscape, portrait (default square)")
	fs.StringVar(&f.outSize, "out-size", "", "canvas size WxH, or N for NxN")
	fs.IntVar(&f.marginLeft, "margin-left", canvas.DefaultMargin, "left margin in pixels")
	fs.IntVar(&f.marginRight, "margin-right", canvas.DefaultMargin, "right margin in pixels")
	fs.IntVar(&f.marginTop, "margin-top", canvas.DefaultMargin, "top margin in pixels")
	fs.IntVar(&f.marginBottom, "margin-bottom", canvas.DefaultMargin, "bottom margin in pixels")
	fs.StringVar(&f.background, "background", "transparent", "canvas background: transparent, white, black or #RRGGBB[AA]")
	fs.StringVar(&f.removeSize, "remove-size", "auto", "remove.bg size parameter: auto, preview or full")
	fs.StringVar(&f.apiKey, "api-key", "", "remove.bg API key (overrides "+credential.EnvAPIKey+" and the keychain)")
	fs.StringVar(&f.apiBaseURL, "api-base-url", rembg.DefaultBaseURL, "remove.bg API base URL")
	fs.StringVar(&f.report, "report", "", "write a JSON run report to this file")
	fs.BoolVar(&f.skipExisting, "skip-existing", false, "skip inputs whose output already exists")
	fs.BoolVar(&f.xmpSidecar, "xmp-sidecar", false, "also write a .xmp sidecar next to each output")
	fs.BoolVar(&f.noXMP, "no-xmp", false, "do not tag outputs with XMP metadata")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return f
}

// merge 以配置文件为默认值，命令行显式给出的参数覆盖之
func (f *runFlags) merge(fs *flag.FlagSet) (*config.Config, error) {
	path, explicit := f.configPath, f.configPath != ""
	if !explicit {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "input-dir":
			cfg.InputDir = f.inputDir
		case "output-dir":
			cfg.OutputDir = f.outputDir
		case "bad-dir":
			cfg.BadDir = &f.badDir
		case "preset":
			cfg.Preset = f.preset
			if _, set := isSet(fs, "out-size"); !set {
				cfg.OutSize = ""
			}
		case "out-size":
			cfg.OutSize = f.outSize
			if _, set := isSet(fs, "preset"); !set {
				cfg.Preset = ""
			}
		case "margin-left":
			cfg.Margins.Left = f.marginLeft
		case "margin-right":
			cfg.Margins.Right = f.marginRight
		case "margin-top":
			cfg.Margins.Top = f.marginTop
		case "margin-bottom":
			cfg.Margins.Bottom = f.marginBottom
		case "background":
			cfg.Background = f.background
		case "remove-size":
			cfg.RemoveSize = f.removeSize
		case "api-base-url":
			cfg.APIBaseURL = f.apiBaseURL
		case "skip-existing":
			cfg.SkipExisting = f.skipExisting
		case "report":
			cfg.Report = f.report
		case "xmp-sidecar":
			cfg.XMP.Sidecar = f.xmpSidecar
		case "no-xmp":
			cfg.XMP.Disable = f.noXMP
		case "log-level":
			cfg.LogLevel = f.logLevel
		}
	})
	return cfg, nil
}

func isSet(fs *flag.FlagSet, name string) (*flag.Flag, bool) {
	var found *flag.Flag
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = fl
		}
	})
	return found, found != nil
}

// batch 一次运行所需的全部已校验参数
type batch struct {
	opts    pipeline.Options
	remover rembg.Remover
	report  string
	logger  *slog.Logger
}

// prepare 解析参数并在处理任何文件之前完成所有校验
func (a *app) prepare(name string, args []string, extra func(fs *flag.FlagSet)) (*batch, int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	f := registerRunFlags(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, usageCode(err)
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(a.stderr, "%s: unexpected arguments %v\n", name, fs.Args())
		return nil, exitUsage
	}

	cfg, err := f.merge(fs)
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
		return nil, exitUsage
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
		return nil, exitUsage
	}
	logger := a.newLogger(level)

	bg, err := canvas.ParseBackground(cfg.Background)
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
		return nil, exitUsage
	}
	spec, err := canvas.NewSpec(cfg.Preset, cfg.OutSize, cfg.Margins, bg)
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
		return nil, exitUsage
	}
	size, err := rembg.ParseSize(cfg.RemoveSize)
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
		return nil, exitUsage
	}

	resolver := &credential.Resolver{Store: a.store, Getenv: a.getenv}
	apiKey, source, err := resolver.Resolve(f.apiKey)
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", name, err)
		return nil, exitUsage
	}
	logger.Debug("api key resolved", "source", source)

	return &batch{
		opts: pipeline.Options{
			InputDir:     cfg.InputDir,
			OutputDir:    cfg.OutputDir,
			BadDir:       cfg.BadDirOr(cfg.OutputDir),
			Canvas:       spec,
			SkipExisting: cfg.SkipExisting,
			Tag: pipeline.TagOptions{
				Enabled: !cfg.XMP.Disable,
				Tool:    cfg.XMP.Tool,
				Sidecar: cfg.XMP.Sidecar,
			},
			Raw:    &util.RawConverter{Command: cfg.RawConverter.Command, Args: cfg.RawConverter.Args},
			Logger: logger,
		},
		remover: rembg.NewRemoveBG(apiKey, rembg.WithBaseURL(cfg.APIBaseURL), rembg.WithSize(size)),
		report:  cfg.Report,
		logger:  logger,
	}, exitOK
}

func (a *app) run(ctx context.Context, args []string) int {
	b, code := a.prepare("run", args, nil)
	if b == nil {
		return code
	}
	return a.runBatch(ctx, b)
}

func (a *app) runBatch(ctx context.Context, b *batch) int {
	defer util.Trace("batch")()

	summary, err := pipeline.New(b.remover, b.opts).Run(ctx)
	if summary != nil && b.report != "" {
		if rerr := pipeline.WriteReport(b.report, summary); rerr != nil {
			b.logger.Error("write report", "path", b.report, "error", rerr)
		}
	}
	if err != nil {
		if errors.Is(err, canvas.ErrInvalidSizeSpec) {
			_, _ = fmt.Fprintf(a.stderr, "run: %v\n", err)
			return exitUsage
		}
		b.logger.Error("batch aborted", "error", err)
		return exitFailed
	}

	_, _ = fmt.Fprintf(a.stdout, "Wrote %d file(s) to: %s (failed %d, skipped %d)\n",
		summary.Processed, filepath.Clean(b.opts.OutputDir), summary.Failed, summary.Skipped)
	if summary.HasFailures() {
		return exitFailed
	}
	return exitOK
}
