// Command removebg-square removes image backgrounds with remove.bg and places
// the cutouts on padded canvases of a fixed size.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaos-io/removebg-square/credential"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// app 命令运行环境，显式传给各子命令
type app struct {
	stdout io.Writer
	stderr io.Writer
	store  credential.Store
	getenv func(string) string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		store:  credential.NewKeyring(),
		getenv: os.Getenv,
	}
	code := a.execute(ctx, os.Args[1:])
	cancel()
	os.Exit(code)
}

func (a *app) execute(ctx context.Context, args []string) int {
	if len(args) == 0 {
		return a.run(ctx, nil)
	}

	switch args[0] {
	case "run":
		return a.run(ctx, args[1:])
	case "schedule":
		return a.schedule(ctx, args[1:])
	case "login":
		return a.login(args[1:])
	case "logout":
		return a.logout(args[1:])
	case "help", "-h", "-help", "--help":
		a.usage()
		return exitOK
	}

	if len(args[0]) > 0 && args[0][0] == '-' {
		return a.run(ctx, args)
	}
	_, _ = fmt.Fprintf(a.stderr, "unknown command %q\n\n", args[0])
	a.usage()
	return exitUsage
}

func (a *app) usage() {
	_, _ = fmt.Fprint(a.stderr, `Usage:
  removebg-square login --api-key KEY
  removebg-square logout
  removebg-square run [flags]
  removebg-square schedule --cron SPEC [run flags]

Run "removebg-square run -h" for the run flags.
`)
}

func (a *app) newLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
