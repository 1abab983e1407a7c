// Command xdg-document-portal is the per-user session-bus document portal
// service: it brokers sandboxed access to host files through opaque
// document handles (spec.md §1).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/calvinalkan/xdg-document-portal/internal/appid"
	"github.com/calvinalkan/xdg-document-portal/internal/busconn"
	"github.com/calvinalkan/xdg-document-portal/internal/config"
	"github.com/calvinalkan/xdg-document-portal/internal/engine"
	"github.com/calvinalkan/xdg-document-portal/internal/log"
	"github.com/calvinalkan/xdg-document-portal/internal/portal"
	"github.com/calvinalkan/xdg-document-portal/internal/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Environ()))
}

func run(args []string, environ []string) int {
	flags := pflag.NewFlagSet("xdg-document-portal", pflag.ContinueOnError)
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")
	replace := flags.Bool("replace", false, "replace an existing service instance")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}

		fmt.Fprintln(os.Stderr, err)

		return 2
	}

	getenv := envLookup(environ)

	cfg, err := config.Load(getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)

		return 1
	}

	if *verbose {
		cfg.LogLevel = log.DebugLevel
	}

	log.Init(log.Config{Level: cfg.LogLevel})

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Logger.Error().Err(err).Msg("create data directory")

		return 1
	}

	s, err := store.Load(cfg.DBPath())
	if err != nil {
		log.Logger.Error().Err(err).Msg("load document store")

		return 1
	}

	conn, err := busconn.Connect()
	if err != nil {
		log.Logger.Error().Err(err).Msg("connect session bus")

		return 1
	}

	eng := engine.New(s)
	resolver := appid.New(conn)
	shell := portal.New(conn, s, eng, resolver, cfg.DBPath(), cfg.FlushDebounce)

	if err := shell.Start(*replace); err != nil {
		log.Logger.Error().Err(err).Msg("acquire well-known name")

		return 1
	}

	log.Logger.Info().Str("data_dir", cfg.DataDir).Msg("xdg-document-portal ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-shell.Fatal:
		log.Logger.Error().Err(err).Msg("fatal bus error, terminating")
		shell.Shutdown()

		return 1
	}

	shell.Shutdown()

	return 0
}

func envLookup(environ []string) func(string) string {
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				env[e[:i]] = e[i+1:]

				break
			}
		}
	}

	return func(key string) string { return env[key] }
}
