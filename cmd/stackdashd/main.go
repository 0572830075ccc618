package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/flo-mic/stackdash/internal/config"
	"github.com/flo-mic/stackdash/internal/entitlements"
	"github.com/flo-mic/stackdash/internal/logging"
	"github.com/flo-mic/stackdash/internal/server"
)

func main() {
	cfgPath := pflag.String("config", config.DefaultServerConfigPath, "Path to server config")
	pflag.Parse()

	cfg, err := config.LoadServerConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, closeLog, err := logging.Output(cfg.LogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	logger, err := logging.New(out, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ents := entitlements.Load(cfg.LicenseEnv, cfg.LicensePath)
	if cfg.ScanKind == "repo" {
		slog.Info("scan kind repo reads the checked-out tree under scan_root", "scan_root", cfg.ScanRoot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg, ents, logger).Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("stackdashd stopped")
}
