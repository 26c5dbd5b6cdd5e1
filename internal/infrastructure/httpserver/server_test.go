package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/infrastructure/events"
)

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

type stubProcessor struct {
	lastReq domain.InsightRequest
	resp    domain.InsightResponse
	err     error
}

func (s *stubProcessor) Process(_ context.Context, req domain.InsightRequest) (domain.InsightResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func newTestServer(t *testing.T, proc *stubProcessor) (*Server, *events.Hub) {
	t.Helper()
	hub := events.NewHub(nopLogger{})
	return New(proc, hub, nopLogger{}, time.Minute), hub
}

func TestHandleInsight(t *testing.T) {
	proc := &stubProcessor{
		resp: domain.InsightResponse{
			Repo: &domain.RepoInfo{FullName: "acme/widgets", Stars: 7},
		},
	}
	srv, _ := newTestServer(t, proc)

	body := `{"owner":"acme","repo":"widgets","data":["repo_info","icon"]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/gitscope", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("CORS header = %q", got)
	}
	if proc.lastReq.Owner != "acme" || len(proc.lastReq.Data) != 2 {
		t.Fatalf("processor saw %+v", proc.lastReq)
	}
	var resp domain.InsightResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Repo == nil || resp.Repo.Stars != 7 {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHandleInsightMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/gitscope", strings.NewReader("{not json"))
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
}

func TestHandleInsightProcessorFailure(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{err: errors.New("boom")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/gitscope", strings.NewReader(`{"owner":"a","repo":"b","data":["stats"]}`))
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestPreflightAndMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/gitscope", nil)
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("preflight methods = %q", got)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/gitscope", nil)
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestEventStream(t *testing.T) {
	srv, hub := newTestServer(t, &stubProcessor{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/gitscope/events/acme/widgets", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	first := readSSEData(t, reader)
	var hello map[string]interface{}
	if err := json.Unmarshal(first, &hello); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	if hello["type"] != "connected" || hello["owner"] != "acme" || hello["repo"] != "widgets" {
		t.Fatalf("hello = %v", hello)
	}

	key := domain.RepoKey{Owner: "acme", Name: "widgets"}
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(key) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(domain.Event{
		Type:        domain.EventCloneCompleted,
		Owner:       "acme",
		Repo:        "widgets",
		Data:        map[string]interface{}{"success": true},
		TimestampMS: time.Now().UnixMilli(),
	})

	var ev domain.Event
	if err := json.Unmarshal(readSSEData(t, reader), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != domain.EventCloneCompleted || ev.Owner != "acme" {
		t.Fatalf("event = %+v", ev)
	}

	cancel()
	deadline = time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(key) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never unsubscribed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventStreamRejectsBadKey(t *testing.T) {
	srv, _ := newTestServer(t, &stubProcessor{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/gitscope/events/../widgets", nil)
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code == http.StatusOK && strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream") {
		t.Fatalf("expected rejection for dot-dot owner, got stream")
	}
}

// readSSEData reads lines until one "data: ..." line arrives and returns its
// payload.
func readSSEData(t *testing.T, reader *bufio.Reader) []byte {
	t.Helper()
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: "))
		}
	}
}
