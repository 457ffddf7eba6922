// Command bigline runs the line-indexing engine as a newline-delimited
// JSON protocol server over stdin/stdout (spec §1/§6). Grounded on the
// teacher's cmd/lci entrypoint: urfave/cli for flag parsing, a
// context-cancelled server goroutine raced against OS signals for
// graceful shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/bigline/internal/config"
	"github.com/standardbeagle/bigline/internal/diag"
	"github.com/standardbeagle/bigline/internal/protocol"
	"github.com/standardbeagle/bigline/internal/session"
)

// version can be overridden at build time via -ldflags, matching the
// teacher's version.Version convention; no build-time injection is set
// up here, so it stays a plain default.
var version = "dev"

func main() {
	app := &cli.App{
		Name:                   "bigline",
		Usage:                  "line-indexing and search engine for very large text files",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a bigline.kdl config file (defaults to ./bigline.kdl if present)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bigline:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to load config: %v", err), 1)
	}

	diag.Default = protocol.NewStderrSink(os.Stderr)

	mgr := session.NewManager(cfg)
	defer mgr.Close()

	dispatcher := protocol.NewDispatcher(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- dispatcher.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return cli.Exit(fmt.Sprintf("dispatcher error: %v", err), 1)
		}
		return nil
	case sig := <-sigChan:
		diag.Default.Info(fmt.Sprintf("received signal %v, shutting down", sig))
		cancel()

		select {
		case <-errChan:
			return nil
		case <-time.After(2 * time.Second):
			return nil
		}
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cfg := config.Default()
		if err := config.ApplyKDLFile(cfg, string(content)); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load()
}
