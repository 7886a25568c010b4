package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger 把 cron 的日志转到 slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// schedule 按 cron 表达式反复执行批处理，已有输出的文件会被跳过，
// 上一批未完成时跳过本次触发
func (a *app) schedule(ctx context.Context, args []string) int {
	var spec string
	b, code := a.prepare("schedule", args, func(fs *flag.FlagSet) {
		fs.StringVar(&spec, "cron", "", `cron spec, e.g. "*/10 * * * *" or "@every 10m"`)
	})
	if b == nil {
		return code
	}
	if spec == "" {
		_, _ = fmt.Fprintln(a.stderr, "schedule: --cron is required")
		return exitUsage
	}
	b.opts.SkipExisting = true

	logger := cronLogger{logger: b.logger}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	id, err := c.AddFunc(spec, func() {
		code := a.runBatch(ctx, b)
		b.logger.Info("scheduled batch done", "exit_code", code)
	})
	if err != nil {
		_, _ = fmt.Fprintf(a.stderr, "schedule: invalid --cron %q: %v\n", spec, err)
		return exitUsage
	}

	c.Start()
	b.logger.Info("scheduler started", "cron", spec, "next", c.Entry(id).Next)

	<-ctx.Done()
	b.logger.Info("scheduler stopping")
	<-c.Stop().Done()
	return exitOK
}
