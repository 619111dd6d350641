package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/notifications"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
	"github.com/jackzampolin/songshelf/internal/server/endpoints"
)

const testBatch = `{
  "records": [
    {
      "book_id": "hymnal",
      "completeness": {"exists_count": 13, "total_expected": 13},
      "consistency": {"verified_songs": 16, "output_files": 16, "local_pdfs": 16},
      "artifacts": {
        "source_pdf": {"exists": true, "uri": "s3://input/hymnal.pdf"},
        "pipeline_run": {"exists": true, "status": "completed", "artist": "Choir", "title": "Hymnal", "song_count": 16}
      },
      "local_folder": "Choir/Hymnal"
    },
    {
      "book_id": "hymnal_rerun1",
      "completeness": {"exists_count": 10, "total_expected": 13},
      "consistency": {"verified_songs": 16, "output_files": 15, "local_pdfs": 16},
      "artifacts": {"source_pdf": {"exists": true, "uri": "s3://input/hymnal.pdf"}}
    },
    {
      "book_id": "songbook",
      "completeness": {"exists_count": 1, "total_expected": 13},
      "consistency": {"verified_songs": 0, "output_files": 0, "local_pdfs": 0},
      "artifacts": {}
    }
  ]
}`

// fakeControlPlane is an in-process orchestrator HTTP API.
type fakeControlPlane struct {
	mu       sync.Mutex
	statuses map[string]orchestrator.StatusResponse
	submits  []orchestrator.ReprocessRequest
}

func newFakeControlPlane(t *testing.T) (*fakeControlPlane, *httptest.Server) {
	t.Helper()
	f := &fakeControlPlane{statuses: make(map[string]orchestrator.StatusResponse)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /reprocess", func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.ReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submits = append(f.submits, req)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(orchestrator.ReprocessResponse{
			Status:       orchestrator.SubmitStarted,
			ExecutionARN: "arn:exec:" + req.BookID,
		})
	})
	mux.HandleFunc("GET /status/{book_id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		resp, ok := f.statuses[r.PathValue("book_id")]
		f.mu.Unlock()
		if !ok {
			resp = orchestrator.StatusResponse{Status: orchestrator.LookupNotFound}
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /execution", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orchestrator.Execution{
			ARN:    r.URL.Query().Get("arn"),
			Status: "RUNNING",
			Steps:  []orchestrator.Step{{Name: "split", Status: "SUCCEEDED"}, {Name: "extract", Status: "RUNNING"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeControlPlane) setStatus(bookID string, resp orchestrator.StatusResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[bookID] = resp
}

func (f *fakeControlPlane) submitted() []orchestrator.ReprocessRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orchestrator.ReprocessRequest(nil), f.submits...)
}

type capturingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Completion
}

func (n *capturingNotifier) NotifyJobFinished(_ context.Context, c notifications.Completion) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return nil
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func writeBatch(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lineage.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write lineage batch: %v", err)
	}
	return path
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv       *Server
	plane     *fakeControlPlane
	notifier  *capturingNotifier
	batchPath string
}

func newTestEnv(t *testing.T, batch string) *testEnv {
	t.Helper()
	plane, planeSrv := newFakeControlPlane(t)
	notifier := &capturingNotifier{}
	path := writeBatch(t, batch)

	srv, err := New(Config{
		Host:          "127.0.0.1",
		Port:          "0",
		Logger:        quietLogger(),
		LineageSource: lineage.FileSource{Path: path},
		Orchestrator:  orchestrator.NewHTTPClient(planeSrv.URL, 5*time.Second),
		Notifier:      notifier,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{srv: srv, plane: plane, notifier: notifier, batchPath: path}
}

// TestServer_FullLifecycle tests start, request handling and shutdown.
func TestServer_FullLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env := newTestEnv(t, testBatch)
	srv := env.srv

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	baseURL, err := waitForServer(ctx, srv, 10*time.Second)
	if err != nil {
		serverCancel()
		t.Fatalf("server did not start: %v", err)
	}

	t.Run("health_endpoint", func(t *testing.T) {
		var health endpoints.HealthResponse
		if code := getJSON(t, baseURL+"/health", &health); code != http.StatusOK {
			t.Errorf("health status = %d, want %d", code, http.StatusOK)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		var health endpoints.HealthResponse
		if code := getJSON(t, baseURL+"/ready", &health); code != http.StatusOK {
			t.Errorf("ready status = %d, want %d", code, http.StatusOK)
		}
		if health.Lineage != "ok" {
			t.Errorf("health.Lineage = %q, want %q", health.Lineage, "ok")
		}
		if health.Orchestrator != "ok" {
			t.Errorf("health.Orchestrator = %q, want %q", health.Orchestrator, "ok")
		}
	})

	t.Run("lineage_loaded_on_start", func(t *testing.T) {
		var resp endpoints.ListBooksResponse
		if code := getJSON(t, baseURL+"/api/books", &resp); code != http.StatusOK {
			t.Fatalf("books status = %d, want %d", code, http.StatusOK)
		}
		if len(resp.Books) != 3 {
			t.Errorf("len(Books) = %d, want 3", len(resp.Books))
		}
	})

	t.Run("status_reports_idle_polling", func(t *testing.T) {
		var resp endpoints.StatusResponse
		getJSON(t, baseURL+"/status", &resp)
		if resp.Polling.State != "idle" {
			t.Errorf("Polling.State = %q, want idle", resp.Polling.State)
		}
		if !resp.Lineage.Loaded || resp.Lineage.Records != 3 {
			t.Errorf("Lineage = %+v, want loaded with 3 records", resp.Lineage)
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	serverCancel()

	select {
	case err := <-serverErr:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down within timeout")
	}

	if srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown, want false")
	}
}

// TestServer_ContextCancellation tests that an already cancelled context
// stops the server promptly.
func TestServer_ContextCancellation(t *testing.T) {
	env := newTestEnv(t, testBatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- env.srv.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
	if env.srv.IsRunning() {
		t.Error("IsRunning() = true after cancellation")
	}
}

// TestServer_DoubleStart tests that starting a running server returns an error.
func TestServer_DoubleStart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env := newTestEnv(t, testBatch)
	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	go func() {
		_ = env.srv.Start(serverCtx)
	}()
	if _, err := waitForServer(ctx, env.srv, 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	if err := env.srv.Start(ctx); err == nil {
		t.Error("second Start() should return error")
	}
}

// TestServer_StartsWithoutLineage tests that a missing batch does not stop
// the server and data endpoints report 503.
func TestServer_StartsWithoutLineage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, planeSrv := newFakeControlPlane(t)
	srv, err := New(Config{
		Port:          "0",
		Logger:        quietLogger(),
		LineageSource: lineage.FileSource{Path: filepath.Join(t.TempDir(), "missing.json")},
		Orchestrator:  orchestrator.NewHTTPClient(planeSrv.URL, time.Second),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	go func() { _ = srv.Start(serverCtx) }()

	baseURL, err := waitForServer(ctx, srv, 10*time.Second)
	if err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	var errResp endpoints.ErrorResponse
	if code := getJSON(t, baseURL+"/api/books", &errResp); code != http.StatusServiceUnavailable {
		t.Errorf("books status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(errResp.Error, "not loaded") {
		t.Errorf("error = %q, want not loaded", errResp.Error)
	}

	var ready endpoints.HealthResponse
	if code := getJSON(t, baseURL+"/ready", &ready); code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if ready.Lineage != "not_loaded" {
		t.Errorf("ready.Lineage = %q, want not_loaded", ready.Lineage)
	}
}

func TestNew_RequiresOrchestratorURL(t *testing.T) {
	t.Setenv("SONGSHELF_ORCHESTRATOR_URL", "")
	_, err := New(Config{
		Logger:        quietLogger(),
		LineageSource: lineage.FileSource{Path: "unused.json"},
	})
	if err == nil || !strings.Contains(err.Error(), "orchestrator url") {
		t.Fatalf("New() error = %v, want orchestrator url error", err)
	}
}

// waitForServer polls until the server has bound its port and answers
// /health, returning the base URL.
func waitForServer(ctx context.Context, srv *Server, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		addr := srv.Addr()
		if !strings.HasSuffix(addr, ":0") {
			baseURL := "http://" + addr
			req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
			if err != nil {
				return "", err
			}
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return baseURL, nil
				}
			}
		}

		time.Sleep(50 * time.Millisecond)
	}

	return "", fmt.Errorf("server not ready after %s", timeout)
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}
