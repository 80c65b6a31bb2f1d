// Command eob_export logs into the member portal, collects every service line
// from every EOB and writes them to stdout as CSV.
package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgnsrekt/eob_export/internal/config"
	"github.com/dgnsrekt/eob_export/internal/export"
	"github.com/dgnsrekt/eob_export/internal/logging"
	"github.com/dgnsrekt/eob_export/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	// stdout carries the CSV
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile, os.Stderr); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	slog.Info("eob export config loaded",
		"portal_url", cfg.PortalURL,
		"page_timeout_ms", cfg.PageTimeoutMS,
		"poll_interval_ms", cfg.PollIntervalMS,
		"cdp_url", cfg.CDPURL,
		"launch_browser", cfg.LaunchBrowser,
		"replay_dir", cfg.ReplayDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := service.New(cfg).Export(ctx)
	if err != nil {
		slog.Error("export aborted", "error", err)
		return 1
	}

	out := bufio.NewWriter(os.Stdout)
	if err := export.WriteCSV(out, res.Records); err != nil {
		slog.Error("failed to write csv", "error", err)
		return 1
	}
	if err := out.Flush(); err != nil {
		slog.Error("failed to write csv", "error", err)
		return 1
	}
	return 0
}
