package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/config"
	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
	"github.com/jackzampolin/songshelf/internal/svcctx"
	"github.com/jackzampolin/songshelf/internal/tracker"
)

type stubOrchestrator struct {
	mu        sync.Mutex
	reprocess func(orchestrator.ReprocessRequest) (*orchestrator.ReprocessResponse, error)
	pingErr   error
	pings     int
	requests  []orchestrator.ReprocessRequest
}

func (s *stubOrchestrator) Reprocess(_ context.Context, req orchestrator.ReprocessRequest) (*orchestrator.ReprocessResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.reprocess
	s.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &orchestrator.ReprocessResponse{Status: orchestrator.SubmitStarted, ExecutionARN: "arn:" + req.BookID}, nil
}

func (s *stubOrchestrator) Status(context.Context, string) (*orchestrator.StatusResponse, error) {
	return &orchestrator.StatusResponse{Status: orchestrator.LookupNotFound}, nil
}

func (s *stubOrchestrator) Execution(_ context.Context, arn string) (*orchestrator.Execution, error) {
	return &orchestrator.Execution{ARN: arn}, nil
}

func (s *stubOrchestrator) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return s.pingErr
}

type memSource struct{ data string }

func (m memSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.data)), nil
}

func (m memSource) String() string { return "mem://lineage" }

const batch = `{"records": [
  {"book_id": "hymnal", "completeness": {"exists_count": 13, "total_expected": 13},
   "consistency": {"verified_songs": 16, "output_files": 16, "local_pdfs": 16},
   "artifacts": {"source_pdf": {"exists": true, "uri": "s3://input/hymnal.pdf"},
                 "pipeline_run": {"exists": true, "title": "Hymnal"}}},
  {"book_id": "loose", "completeness": {"exists_count": 5, "total_expected": 13},
   "consistency": {"verified_songs": 3, "output_files": 2, "local_pdfs": 3},
   "artifacts": {}}
]}`

type fixture struct {
	orch     *stubOrchestrator
	services *svcctx.Services
	mux      *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := lineage.NewStore(memSource{data: batch}, logger)
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.WriteDefault(cfgPath); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	mgr, err := config.NewManager(cfgPath)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	orch := &stubOrchestrator{}
	log := events.NewLog(100)
	tr := tracker.New(tracker.Config{
		Orchestrator: orch,
		Events:       log,
		Logger:       logger,
		PollInterval: time.Hour,
	})

	f := &fixture{
		orch: orch,
		services: &svcctx.Services{
			Lineage:      store,
			Tracker:      tr,
			Events:       log,
			Orchestrator: orch,
			Config:       mgr,
			Logger:       logger,
		},
		mux: http.NewServeMux(),
	}

	registry := api.NewRegistry()
	for _, ep := range All(Config{ReadyAttempts: 2, ReadyDelay: time.Millisecond}) {
		registry.Register(ep)
	}
	registry.RegisterRoutes(f.mux, func(next http.HandlerFunc) http.HandlerFunc { return next })
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req = req.WithContext(svcctx.WithServices(req.Context(), f.services))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestReprocessBookEndpoint(t *testing.T) {
	t.Run("defaults from lineage", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, "POST", "/api/books/hymnal/reprocess", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body)
		}
		resp := decode[ReprocessResponse](t, rec)
		if resp.Job.Title != "Hymnal" || resp.Job.SourcePDF != "s3://input/hymnal.pdf" {
			t.Errorf("Job = %+v, want lineage defaults", resp.Job)
		}
		if !strings.Contains(resp.Message, "Hymnal") {
			t.Errorf("Message = %q", resp.Message)
		}
	})

	t.Run("explicit body wins", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, "POST", "/api/books/hymnal/reprocess", `{"source_pdf": "s3://other.pdf", "force": true, "title": "Other"}`)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body)
		}
		if got := f.orch.requests[0]; got.SourcePDF != "s3://other.pdf" || !got.Force {
			t.Errorf("orchestrator request = %+v", got)
		}
	})

	t.Run("manual splits message", func(t *testing.T) {
		f := newFixture(t)
		f.orch.reprocess = func(req orchestrator.ReprocessRequest) (*orchestrator.ReprocessResponse, error) {
			return &orchestrator.ReprocessResponse{Status: orchestrator.SubmitStarted, UseManualSplits: true}, nil
		}
		resp := decode[ReprocessResponse](t, f.do(t, "POST", "/api/books/hymnal/reprocess", ""))
		if !strings.Contains(resp.Message, "manual splits") {
			t.Errorf("Message = %q, want manual splits note", resp.Message)
		}
	})

	tests := []struct {
		name      string
		path      string
		body      string
		reprocess func(orchestrator.ReprocessRequest) (*orchestrator.ReprocessResponse, error)
		want      int
	}{
		{name: "no source pdf", path: "/api/books/loose/reprocess", want: http.StatusBadRequest},
		{name: "bad body", path: "/api/books/hymnal/reprocess", body: "{", want: http.StatusBadRequest},
		{
			name: "orchestrator rejects",
			path: "/api/books/hymnal/reprocess",
			reprocess: func(orchestrator.ReprocessRequest) (*orchestrator.ReprocessResponse, error) {
				return &orchestrator.ReprocessResponse{Status: orchestrator.SubmitError, Message: "no such pdf"}, nil
			},
			want: http.StatusBadGateway,
		},
		{
			name: "orchestrator unreachable",
			path: "/api/books/hymnal/reprocess",
			reprocess: func(orchestrator.ReprocessRequest) (*orchestrator.ReprocessResponse, error) {
				return nil, errors.New("connection refused")
			},
			want: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orch.reprocess = tt.reprocess
			rec := f.do(t, "POST", tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if len(f.services.Tracker.Active()) != 0 {
				t.Error("failed submission left an active job")
			}
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		f := newFixture(t)
		f.do(t, "POST", "/api/books/hymnal/reprocess", "")
		rec := f.do(t, "POST", "/api/books/hymnal/reprocess", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})
}

func TestListBooksEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/books/hymnal/reprocess", "")

	resp := decode[ListBooksResponse](t, f.do(t, "GET", "/api/books", ""))
	if len(resp.Books) != 2 {
		t.Fatalf("len(Books) = %d, want 2", len(resp.Books))
	}
	if !resp.Books[0].Row.Processing || resp.Books[0].Row.Badge != "processing" {
		t.Errorf("hymnal row = %+v, want processing", resp.Books[0].Row)
	}
	if resp.Books[1].Verdict != lineage.Inconsistent {
		t.Errorf("loose verdict = %q, want INCONSISTENT", resp.Books[1].Verdict)
	}

	rows := resp.Rows()
	if rows[1][2] != "38.5%" {
		t.Errorf("loose completeness cell = %q, want 38.5%%", rows[1][2])
	}
}

func TestListEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.services.Events.Publish(events.LineageRefreshed, "", nil)
	f.services.Events.Publish(events.RowProcessing, "hymnal", nil)

	resp := decode[ListEventsResponse](t, f.do(t, "GET", "/api/events?since=1", ""))
	if len(resp.Events) != 1 || resp.Events[0].Type != events.RowProcessing {
		t.Errorf("Events = %+v, want only row_processing", resp.Events)
	}
	if resp.LastSeq != 2 {
		t.Errorf("LastSeq = %d, want 2", resp.LastSeq)
	}

	if rec := f.do(t, "GET", "/api/events?since=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative since status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSettingsEndpoints(t *testing.T) {
	f := newFixture(t)

	resp := decode[SettingsResponse](t, f.do(t, "GET", "/api/settings?prefix=polling.", ""))
	if len(resp.Settings) == 0 {
		t.Fatal("no polling settings returned")
	}
	for _, e := range resp.Settings {
		if !strings.HasPrefix(e.Key, "polling.") {
			t.Errorf("unexpected key %q", e.Key)
		}
	}

	tests := []struct {
		key  string
		want int
	}{
		{"polling.interval_ms", http.StatusOK},
		{"nope.missing", http.StatusNotFound},
		{"bad key!", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rec := f.do(t, "GET", "/api/settings/"+strings.ReplaceAll(tt.key, " ", "%20"), "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, "GET", "/ready", "")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("orchestrator down retries", func(t *testing.T) {
		f := newFixture(t)
		f.orch.pingErr = errors.New("503")
		rec := f.do(t, "GET", "/ready", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		if resp := decode[HealthResponse](t, rec); resp.Orchestrator != "unreachable" {
			t.Errorf("Orchestrator = %q, want unreachable", resp.Orchestrator)
		}
		if f.orch.pings != 2 {
			t.Errorf("pings = %d, want 2", f.orch.pings)
		}
	})
}

func TestSwaggerEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "GET", "/swagger.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("invalid swagger json: %v", err)
	}
	if doc.Info.Title != "Songshelf API" {
		t.Errorf("title = %q", doc.Info.Title)
	}

	for _, ep := range All(Config{}) {
		method, path, _ := ep.Route()
		if strings.HasPrefix(path, "/swagger") {
			continue
		}
		if _, ok := doc.Paths[path][strings.ToLower(method)]; !ok {
			t.Errorf("%s %s missing from swagger doc", method, path)
		}
	}
}
