package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/eob_export/internal/config"
	"github.com/dgnsrekt/eob_export/internal/export"
	"github.com/dgnsrekt/eob_export/internal/portal"
	"github.com/dgnsrekt/eob_export/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Service interface {
	Export(ctx context.Context) (service.Result, error)
}

type healthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type exportOutput struct {
	Body struct {
		Columns    []string             `json:"columns"`
		Records    []portal.ServiceItem `json:"records"`
		Count      int                  `json:"count"`
		Stats      portal.Stats         `json:"stats"`
		DurationMS int64                `json:"duration_ms"`
	}
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("EOB Export API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/export.csv", exportCSVHandler(svc))

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "export", Method: http.MethodPost, Path: "/api/v1/export", Summary: "Run a full portal export", Description: "Logs in, walks every claims page and returns all service lines. Runs are serialized.", Tags: []string{"Export"}},
		func(ctx context.Context, input *struct{}) (*exportOutput, error) {
			res, err := svc.Export(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &exportOutput{}
			out.Body.Columns = res.Columns
			out.Body.Records = res.Records
			out.Body.Count = len(res.Records)
			out.Body.Stats = res.Stats
			out.Body.DurationMS = res.Duration.Milliseconds()
			return out, nil
		})

	return router
}

// exportCSVHandler streams a run as text/csv. Nothing is written until the run
// has finished, so a failed run never yields a partial table.
func exportCSVHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Export(r.Context())
		if err != nil {
			status, msg := classify(err)
			http.Error(w, msg, status)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="eob_export_%s.csv"`, time.Now().Format("20060102_150405")))
		if err := export.WriteCSV(w, res.Records); err != nil {
			slog.Warn("csv response write failed", "error", err)
		}
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	status, msg := classify(err)
	return huma.NewError(status, msg)
}

func classify(err error) (int, string) {
	if errors.Is(err, config.ErrMissingCredentials) {
		return http.StatusServiceUnavailable, err.Error()
	}
	var coded *portal.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case portal.CodeNavigationTimeout:
			return http.StatusGatewayTimeout, coded.Message
		case portal.CodeElementMissing, portal.CodeDriverFailure:
			return http.StatusBadGateway, fmt.Sprintf("%s: %s", coded.Code, coded.Message)
		default:
			return http.StatusInternalServerError, fmt.Sprintf("%s: %s", coded.Code, coded.Message)
		}
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, "export canceled"
	}
	return http.StatusInternalServerError, err.Error()
}
