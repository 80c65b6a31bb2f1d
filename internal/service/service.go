// Package service runs one complete portal export: it opens a browser session,
// logs in, walks every claims page and returns the merged records with their
// column schema.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dgnsrekt/eob_export/internal/browser"
	"github.com/dgnsrekt/eob_export/internal/config"
	"github.com/dgnsrekt/eob_export/internal/export"
	"github.com/dgnsrekt/eob_export/internal/notify"
	"github.com/dgnsrekt/eob_export/internal/portal"
)

const notifyTimeout = 10 * time.Second

// Result is the outcome of one export run.
type Result struct {
	Columns  []string             `json:"columns"`
	Records  []portal.ServiceItem `json:"records"`
	Stats    portal.Stats         `json:"stats"`
	Duration time.Duration        `json:"duration_ns"`
}

// Session is an open browser plus whatever must be torn down with it.
type Session struct {
	Driver  browser.Driver
	Cleanup func()
}

// Opener starts a browser session for one run.
type Opener func(ctx context.Context) (Session, error)

// Service serializes export runs; a portal session cannot be shared.
type Service struct {
	cfg    *config.Config
	open   Opener
	client *http.Client

	mu sync.Mutex
}

// New returns a Service that picks its browser from cfg: saved pages when
// ReplayDir is set, an existing browser when CDPURL is set, otherwise a
// launched Chromium.
func New(cfg *config.Config) *Service {
	return NewWithOpener(cfg, DriverOpener(cfg))
}

func NewWithOpener(cfg *config.Config, open Opener) *Service {
	return &Service{cfg: cfg, open: open, client: &http.Client{Timeout: notifyTimeout}}
}

// Export performs one full run. Concurrent callers wait for the run in progress.
func (s *Service) Export(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cfg.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res, err := s.run(ctx)
	res.Duration = time.Since(start)

	if err != nil {
		slog.Error("export failed", "error", err, "claims", res.Stats.Claims, "items", res.Stats.Items, "duration", res.Duration)
	} else {
		slog.Info("export finished", "pages", res.Stats.Pages, "claims", res.Stats.Claims,
			"items", res.Stats.Items, "columns", len(res.Columns), "duration", res.Duration)
	}
	s.notify(ctx, res, err)
	if err != nil {
		return Result{Stats: res.Stats, Duration: res.Duration}, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context) (Result, error) {
	sess, err := s.open(ctx)
	if err != nil {
		return Result{}, &portal.CodedError{Code: portal.CodeDriverFailure, Message: "open browser session", Cause: err}
	}
	defer func() {
		if err := sess.Driver.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
		if sess.Cleanup != nil {
			sess.Cleanup()
		}
	}()

	nav := portal.NewNavigator(sess.Driver, portal.Options{
		PortalURL:    s.cfg.PortalURL,
		Username:     s.cfg.Username,
		Password:     s.cfg.Password,
		PageTimeout:  s.cfg.PageTimeout(),
		PollInterval: s.cfg.PollInterval(),
		Layout:       portal.DefaultLayout(),
	})
	if err := nav.Login(ctx); err != nil {
		return Result{}, err
	}

	items := nav.Items()
	records, err := items.Collect(ctx)
	if err != nil {
		return Result{Stats: items.Stats()}, err
	}
	return Result{
		Columns: export.Schema(records),
		Records: records,
		Stats:   items.Stats(),
	}, nil
}

func (s *Service) notify(ctx context.Context, res Result, runErr error) {
	if s.cfg.NtfyURL == "" {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	summary := notify.Summary{
		Pages:    res.Stats.Pages,
		Claims:   res.Stats.Claims,
		Items:    res.Stats.Items,
		Columns:  len(res.Columns),
		Duration: res.Duration,
		Err:      runErr,
	}
	if err := notify.SendSummary(nctx, s.client, s.cfg.NtfyURL, summary); err != nil {
		slog.Warn("run notification failed", "endpoint", s.cfg.NtfyURL, "error", err)
	}
}

// DriverOpener returns the Opener selected by cfg.
func DriverOpener(cfg *config.Config) Opener {
	return func(ctx context.Context) (Session, error) {
		switch {
		case cfg.ReplayDir != "":
			d, err := browser.LoadReplayDir(cfg.ReplayDir)
			if err != nil {
				return Session{}, err
			}
			slog.Info("using replay driver", "dir", cfg.ReplayDir)
			return Session{Driver: d}, nil

		case cfg.CDPURL != "":
			d, err := browser.NewChromeDriver(ctx, cfg.CDPURL, cfg.PageTimeout())
			if err != nil {
				return Session{}, err
			}
			return Session{Driver: d}, nil

		case cfg.LaunchBrowser:
			l := browser.NewLauncher(browser.LaunchConfig{
				CDPAddress: cfg.CDPAddress,
				CDPPort:    cfg.CDPPort,
				ProfileDir: cfg.ProfileDir,
				Headless:   cfg.Headless,
			})
			if err := l.Launch(ctx); err != nil {
				return Session{}, fmt.Errorf("launch browser: %w", err)
			}
			d, err := browser.NewChromeDriver(ctx, l.CDPURL(), cfg.PageTimeout())
			if err != nil {
				l.Stop()
				return Session{}, err
			}
			return Session{Driver: d, Cleanup: l.Stop}, nil

		default:
			return Session{}, errors.New("no browser configured: set EOB_REPLAY_DIR, EOB_CDP_URL or EOB_LAUNCH_BROWSER=true")
		}
	}
}
