// Command eob_server exposes portal exports over HTTP.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/eob_export/internal/api"
	"github.com/dgnsrekt/eob_export/internal/config"
	"github.com/dgnsrekt/eob_export/internal/logging"
	"github.com/dgnsrekt/eob_export/internal/netutil"
	"github.com/dgnsrekt/eob_export/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFile, os.Stdout); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Warn("credentials not configured, exports will fail", "error", err)
	}

	slog.Info("eob server config loaded",
		"bind_addr", cfg.ServerAddr,
		"port_candidates", cfg.ServerPortCandidates,
		"port_auto_fallback", cfg.ServerPortAutoFallback,
		"portal_url", cfg.PortalURL,
		"page_timeout_ms", cfg.PageTimeoutMS,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.ServerAddr, cfg.ServerPortCandidates, cfg.ServerPortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.ServerAddr, "error", err)
		os.Exit(1)
	}

	h := api.NewServer(service.New(cfg))
	srv := &http.Server{Addr: bindAddr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("eob server listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("eob server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("eob server shutdown failed", "error", err)
	}
}
