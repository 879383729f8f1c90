package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/devapi/pkg/api"
	"github.com/newtron-network/devapi/pkg/audit"
	"github.com/newtron-network/devapi/pkg/devlock"
	"github.com/newtron-network/devapi/pkg/executor"
	"github.com/newtron-network/devapi/pkg/interaction"
	"github.com/newtron-network/devapi/pkg/settings"
	"github.com/newtron-network/devapi/pkg/util"
)

var (
	serveListen string
	serveDryRun bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until interrupted.

Routes:
  POST     /configure-loopback/
  DELETE   /delete-loopback/{loopback_number}/
  GET      /interfaces/
  GET|PUT  /configure-dry-run/
  GET      /audit/

With --dry-run (or DRY_RUN=true) the server starts in dry-run mode; the
mode can be toggled at runtime through /configure-dry-run/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("listen") {
			appSettings.Server.Listen = serveListen
		}
		if cmd.Flags().Changed("dry-run") {
			appSettings.Server.DryRun = serveDryRun
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, cleanup, err := buildService(ctx, appSettings, settings.FileSource(configPath))
		if err != nil {
			return err
		}
		defer cleanup()

		util.WithFields(map[string]interface{}{
			"listen":  appSettings.Server.Listen,
			"dry_run": appSettings.Server.DryRun,
		}).Info("devapi starting")

		return api.NewServer(svc).ListenAndServe(ctx, appSettings.Server.Listen)
	},
}

// buildService wires the runtime, executor, optional device lock and
// optional audit log. cleanup releases whatever was opened.
func buildService(ctx context.Context, s *settings.Settings, source settings.Source) (*interaction.Service, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				util.Warnf("Shutdown: %v", err)
			}
		}
	}

	rt := settings.NewRuntime(s.Server.DryRun, source)
	exec := executor.NewDefault(rt)

	if s.Lock.RedisAddr != "" {
		ttl := time.Duration(s.Lock.TTLSeconds) * time.Second
		locker := devlock.NewRedisLocker(s.Lock.RedisAddr, s.Lock.RedisDB, ttl)
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := locker.Ping(pctx); err != nil {
			util.Warnf("Device lock Redis at %s unreachable: %v", s.Lock.RedisAddr, err)
		}
		cancel()
		exec.WithLocker(locker)
		closers = append(closers, locker.Close)
	}

	svc := interaction.New(rt, exec)

	if s.Audit.Path != "" {
		logger, err := audit.NewFileLogger(s.Audit.Path, audit.RotationFromMB(s.Audit.MaxSizeMB, s.Audit.MaxBackups))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
		svc.WithAudit(logger)
		closers = append(closers, logger.Close)
	}

	return svc, cleanup, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", settings.DefaultListen, "HTTP listen address")
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "Start in dry-run mode")
}
