package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/eob_export/internal/config"
	"github.com/dgnsrekt/eob_export/internal/portal"
	"github.com/dgnsrekt/eob_export/internal/service"
	"github.com/google/go-cmp/cmp"
)

type stubService struct {
	res   service.Result
	err   error
	calls int
}

func (s *stubService) Export(ctx context.Context) (service.Result, error) {
	s.calls++
	return s.res, s.err
}

func sampleResult() service.Result {
	return service.Result{
		Columns: []string{"Billed", "Claim Number", "Service"},
		Records: []portal.ServiceItem{
			{"Service": "Visit", "Billed": "100.00", "Claim Number": "C-1"},
			{"Service": "Lab", "Claim Number": "C-1"},
		},
		Stats:    portal.Stats{Pages: 1, Claims: 1, Items: 2},
		Duration: 1500 * time.Millisecond,
	}
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(NewServer(&stubService{}), http.MethodGet, "/api/v1/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestDocsDarkMode(t *testing.T) {
	w := serve(NewServer(&stubService{}), http.MethodGet, "/docs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, `data-theme="dark"`) {
		t.Fatalf("docs missing dark theme marker")
	}
	if !strings.Contains(body, "/openapi.json") {
		t.Fatalf("docs missing openapi reference")
	}
}

func TestExportJSON(t *testing.T) {
	svc := &stubService{res: sampleResult()}
	w := serve(NewServer(svc), http.MethodPost, "/api/v1/export")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var got struct {
		Columns    []string            `json:"columns"`
		Records    []map[string]string `json:"records"`
		Count      int                 `json:"count"`
		Stats      portal.Stats        `json:"stats"`
		DurationMS int64               `json:"duration_ms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 2 || got.DurationMS != 1500 {
		t.Fatalf("count, duration = %d, %d; want 2, 1500", got.Count, got.DurationMS)
	}
	if diff := cmp.Diff(sampleResult().Columns, got.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(portal.Stats{Pages: 1, Claims: 1, Items: 2}, got.Stats); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	if svc.calls != 1 {
		t.Fatalf("calls = %d; want 1", svc.calls)
	}
}

func TestExportErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&portal.CodedError{Code: portal.CodeNavigationTimeout, Message: "eob_detail not reached"}, http.StatusGatewayTimeout},
		{&portal.CodedError{Code: portal.CodeElementMissing, Message: "payee block not found"}, http.StatusBadGateway},
		{&portal.CodedError{Code: portal.CodeDriverFailure, Message: "open browser session"}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", config.ErrMissingCredentials), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := NewServer(&stubService{err: tt.err})
		if w := serve(h, http.MethodPost, "/api/v1/export"); w.Code != tt.want {
			t.Errorf("POST export with %v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
		if w := serve(h, http.MethodGet, "/api/v1/export.csv"); w.Code != tt.want {
			t.Errorf("GET export.csv with %v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestExportCSV(t *testing.T) {
	w := serve(NewServer(&stubService{res: sampleResult()}), http.MethodGet, "/api/v1/export.csv")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("content-type = %q; want text/csv", got)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"Billed", "Claim Number", "Service"},
		{"100.00", "C-1", "Visit"},
		{"", "C-1", "Lab"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}
