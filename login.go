package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/chaos-io/removebg-square/credential"
)

func (a *app) login(args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	apiKey := fs.String("api-key", "", "remove.bg API key to store in the OS keychain")
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}

	if err := credential.Login(a.store, *apiKey); err != nil {
		_, _ = fmt.Fprintf(a.stderr, "login: %v\n", err)
		return exitUsage
	}
	_, _ = fmt.Fprintln(a.stdout, "API key saved.")
	return exitOK
}

func (a *app) logout(args []string) int {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return usageCode(err)
	}

	if err := credential.Logout(a.store); err != nil {
		_, _ = fmt.Fprintf(a.stderr, "logout: %v\n", err)
		return exitFailed
	}
	_, _ = fmt.Fprintln(a.stdout, "API key removed.")
	return exitOK
}

func usageCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	return exitUsage
}
