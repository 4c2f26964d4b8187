package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rabbitmq/amqp091-go"

	"github.com/yt110010111/market-analysis-LLM/internal/queue"
	mid "github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
	"github.com/yt110010111/market-analysis-LLM/internal/storage"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
	"github.com/yt110010111/market-analysis-LLM/pkg/store/memory"
)

type stubResearcher struct {
	status research.Status
}

func (s stubResearcher) Run(ctx context.Context, query string) research.Result {
	return research.Result{
		SessionID: "ses_test",
		Query:     query,
		Status:    s.status,
		Report:    "# " + query,
	}
}

type capturePublisher struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
}

func (p *capturePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.body = append(p.body, msg.Body)
	return nil
}

func newTestApp() *mid.App {
	return &mid.App{
		Research: stubResearcher{status: research.StatusSuccess},
		Store:    memory.New(),
		Archive:  storage.NewMemory(),
	}
}

func do(t *testing.T, app *mid.App, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := New(app)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestApp(), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestAnalyzeArchivesResult(t *testing.T) {
	app := newTestApp()

	rec := do(t, app, http.MethodPost, "/api/analyze", `{"query":"ev batteries"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body)
	}
	var res research.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Report != "# ev batteries" {
		t.Errorf("report = %q", res.Report)
	}

	rec = do(t, app, http.MethodGet, "/api/reports/ses_test?format=markdown", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "# ev batteries" {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestAnalyzeRejectsEmptyQuery(t *testing.T) {
	rec := do(t, newTestApp(), http.MethodPost, "/api/analyze", `{"query":""}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestAnalyzeErrorStatus(t *testing.T) {
	app := newTestApp()
	app.Research = stubResearcher{status: research.StatusError}
	rec := do(t, app, http.MethodPost, "/api/analyze", `{"query":"ev batteries"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	var res research.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != research.StatusError || res.Report == "" {
		t.Fatalf("result = %+v", res)
	}

	job, err := app.Archive.Get(context.Background(), "ses_test")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if job.Status != storage.JobFailed {
		t.Errorf("job status = %s", job.Status)
	}
}

func TestAnalyzeAsync(t *testing.T) {
	app := newTestApp()

	rec := do(t, app, http.MethodPost, "/api/analyze/async", `{"query":"ev batteries"}`, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("without queue: code = %d", rec.Code)
	}

	pub := &capturePublisher{}
	app.Queue = pub
	rec = do(t, app, http.MethodPost, "/api/analyze/async", `{"query":"ev batteries"}`, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body)
	}
	var body struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(body.JobID, "job_") || body.Status != "pending" {
		t.Errorf("body = %+v", body)
	}
	if len(pub.keys) != 1 || pub.keys[0] != queue.ResearchQueue {
		t.Fatalf("published = %v", pub.keys)
	}
	msg, err := queue.ParseResearchJob(pub.body[0])
	if err != nil || msg.JobID != body.JobID || msg.RequestedBy != "anonymous" {
		t.Errorf("msg = %+v, err = %v", msg, err)
	}

	rec = do(t, app, http.MethodGet, "/api/reports/"+body.JobID+"?format=markdown", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("pending report: code = %d", rec.Code)
	}
	rec = do(t, app, http.MethodGet, "/api/reports/"+body.JobID, "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"pending"`) {
		t.Errorf("code = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestReportNotFound(t *testing.T) {
	rec := do(t, newTestApp(), http.MethodGet, "/api/reports/job_missing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestGraph(t *testing.T) {
	app := newTestApp()
	ctx := context.Background()
	_ = app.Store.UpsertEntity(ctx, common.Entity{Name: "CATL", Type: "organization", Description: "Battery maker"})
	_ = app.Store.UpsertEntity(ctx, common.Entity{Name: "Tesla", Type: "organization", Description: "EV maker using battery cells"})
	_ = app.Store.UpsertRelationship(ctx, common.Relationship{Source: "CATL", Target: "Tesla", Relation: "supplies"})

	rec := do(t, app, http.MethodGet, "/api/graph?q=battery", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var body struct {
		Entities      []common.Entity       `json:"entities"`
		Relationships []common.Relationship `json:"relationships"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Entities) != 2 || len(body.Relationships) != 1 {
		t.Errorf("graph = %+v", body)
	}

	if rec := do(t, app, http.MethodGet, "/api/graph", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: code = %d", rec.Code)
	}
}

func TestMasterKeyAuth(t *testing.T) {
	app := newTestApp()
	app.MasterAPIKey = "secret"

	if rec := do(t, app, http.MethodGet, "/api/graph?q=battery", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d", rec.Code)
	}
	if rec := do(t, app, http.MethodGet, "/api/graph?q=battery", "", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: code = %d", rec.Code)
	}
	if rec := do(t, app, http.MethodGet, "/api/graph?q=battery", "", map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Errorf("master key: code = %d", rec.Code)
	}
	if rec := do(t, app, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health should stay open: code = %d", rec.Code)
	}
}
