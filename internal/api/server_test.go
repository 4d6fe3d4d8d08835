package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/chunkwise/internal/config"
	"github.com/dgallion1/chunkwise/internal/extract"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

const testKey = "test-key"

const report = `# Overview
The project ran for two years.

# Results
Revenue grew to 4 million dollars.

# Risks
Supply chain delays remain.
`

// revenueExecutor answers for chunks mentioning revenue and reports
// NOT_FOUND for the rest.
func revenueExecutor(ctx context.Context, tasks []extract.Task) ([]extract.Reply, error) {
	replies := make([]extract.Reply, len(tasks))
	for i, t := range tasks {
		replies[i] = extract.NotFoundReply(t.ChunkIndex, nil)
		if strings.Contains(t.Content, "Revenue grew") {
			replies[i] = extract.Reply{
				ChunkIndex: t.ChunkIndex,
				Confidence: extract.High,
				Answer:     "4 million dollars",
				Evidence:   "Revenue grew to 4 million dollars.",
			}
		}
	}
	return replies, nil
}

func newTestServer(t *testing.T, maxSessions int) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:              testKey,
		MaxUploadBytes:      1 << 20,
		DefaultChunkSize:    40,
		DefaultChunkOverlap: 5,
	}
	orch := pipeline.NewOrchestrator(pipeline.ExecutorFunc(revenueExecutor), nil, nil, 0, log)
	return NewServer(pipeline.NewSessionStore(time.Hour, maxSessions), orch, nil, log, cfg)
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func createSession(t *testing.T, srv http.Handler, text string) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/sessions", map[string]string{"title": "Report", "text": text})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := decode(t, rec)["session_id"].(string)
	if id == "" {
		t.Fatal("expected a session id")
	}
	return id
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t, 0)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, 0)
	for name, header := range map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic " + testKey,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions/x", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv, report)

	rec := do(t, srv, http.MethodGet, "/api/sessions/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	body := decode(t, rec)
	if body["title"] != "Report" {
		t.Errorf("expected title Report, got %v", body["title"])
	}
	meta := body["metadata"].(map[string]any)
	if int(meta["header_count"].(float64)) != 3 {
		t.Errorf("expected 3 headers, got %v", meta["header_count"])
	}

	if rec := do(t, srv, http.MethodDelete, "/api/sessions/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, "/api/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestCreateSession_Limit(t *testing.T) {
	srv := newTestServer(t, 1)
	createSession(t, srv, "one")
	rec := do(t, srv, http.MethodPost, "/api/sessions", map[string]string{"text": "two"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestCreateSession_UnknownField(t *testing.T) {
	srv := newTestServer(t, 0)
	rec := do(t, srv, http.MethodPost, "/api/sessions", map[string]string{"body": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func upload(t *testing.T, srv http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestCreateSession_Upload(t *testing.T) {
	srv := newTestServer(t, 0)

	rec := upload(t, srv, "../../report.md", report)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["title"] != "Overview" {
		t.Errorf("expected title from first heading, got %v", body["title"])
	}
	if body["filename"] != "report.md" {
		t.Errorf("expected sanitized filename, got %v", body["filename"])
	}

	rec = upload(t, srv, "image.png", "\x89PNG")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv, report)

	rec := do(t, srv, http.MethodPost, "/api/sessions/"+id+"/search", map[string]any{"pattern": `(?m)^# (\w+)`, "limit": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if int(body["count"].(float64)) != 2 {
		t.Errorf("expected 2 matches, got %v", body["count"])
	}
	first := body["matches"].([]any)[0].(map[string]any)
	if first["match"] != "# Overview" || first["start"].(float64) != 0 {
		t.Errorf("unexpected first match %v", first)
	}

	rec = do(t, srv, http.MethodPost, "/api/sessions/"+id+"/search", map[string]any{"pattern": "["})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad pattern, got %d", rec.Code)
	}
	rec = do(t, srv, http.MethodPost, "/api/sessions/"+id+"/search", map[string]any{"pattern": "zebra"})
	if int(decode(t, rec)["count"].(float64)) != 0 {
		t.Errorf("expected no matches")
	}
}

func TestSection(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv, report)

	rec := do(t, srv, http.MethodGet, "/api/sessions/"+id+"/section?start=-5&end=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("section: status %d", rec.Code)
	}
	if got := decode(t, rec)["text"]; got != report[:10] {
		t.Errorf("expected %q, got %q", report[:10], got)
	}

	rec = do(t, srv, http.MethodGet, "/api/sessions/"+id+"/section?start=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestChunk(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv, report)
	path := "/api/sessions/" + id + "/chunks"

	rec := do(t, srv, http.MethodPost, path, map[string]any{"size": 40, "strategy": "semantic"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chunk: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if int(body["count"].(float64)) != 3 || body["strategy"] != "semantic" {
		t.Errorf("unexpected chunk response %v", body)
	}

	rec = do(t, srv, http.MethodGet, path+"?contains=Revenue", nil)
	body = decode(t, rec)
	if int(body["count"].(float64)) != 1 {
		t.Fatalf("expected 1 filtered chunk, got %v", body["count"])
	}
	if idx := body["chunks"].([]any)[0].(map[string]any)["index"]; idx.(float64) != 1 {
		t.Errorf("expected chunk 1, got %v", idx)
	}

	rec = do(t, srv, http.MethodPost, path, map[string]any{"archetype": "comparison"})
	if rec.Code != http.StatusOK {
		t.Fatalf("archetype chunk: status %d", rec.Code)
	}
	if decode(t, rec)["plan"] == nil {
		t.Error("expected plan in archetype response")
	}

	cases := map[string]map[string]any{
		"bad strategy":  {"strategy": "bogus"},
		"overlap":       {"size": 10, "overlap": 10},
		"negative size": {"size": -1},
		"bad archetype": {"archetype": "poetry"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			if rec := do(t, srv, http.MethodPost, path, req); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestStoreResult(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv, report)
	path := "/api/sessions/" + id + "/results/"

	do(t, srv, http.MethodPut, path+"notes", map[string]any{"value": "hello"})
	do(t, srv, http.MethodPut, path+"total", map[string]any{"value": 42})
	do(t, srv, http.MethodPut, path+"hits", map[string]any{"value": "a", "append": true})
	rec := do(t, srv, http.MethodPut, path+"hits", map[string]any{"value": map[string]any{"chunk_index": 1, "confidence": "HIGH", "answer": "x"}, "append": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("store: status %d: %s", rec.Code, rec.Body.String())
	}

	shapes := map[string]string{}
	for _, k := range decode(t, rec)["keys"].([]any) {
		k := k.(map[string]any)
		shapes[k["key"].(string)] = k["shape"].(string)
	}
	want := map[string]string{"notes": "text(5 chars)", "total": "number", "hits": "list[2]"}
	for k, v := range want {
		if shapes[k] != v {
			t.Errorf("key %s: expected shape %q, got %q", k, v, shapes[k])
		}
	}

	if rec := do(t, srv, http.MethodPut, path+"bad", map[string]any{"value": true}); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bool value, got %d", rec.Code)
	}
}

func TestQuery(t *testing.T) {
	srv := newTestServer(t, 0)
	id := createSession(t, srv, report)
	path := "/api/sessions/" + id + "/query"

	rec := do(t, srv, http.MethodPost, path, map[string]any{"query": "What was revenue?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("query: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	outcome := body["outcome"].(map[string]any)
	if outcome["status"] != "answered" || outcome["tier"] != "HIGH" {
		t.Errorf("unexpected outcome %v", outcome)
	}
	if !strings.Contains(body["answer"].(string), "4 million dollars") {
		t.Errorf("unexpected answer %v", body["answer"])
	}

	rec = do(t, srv, http.MethodPost, path, map[string]any{"query": "revenue?", "archetype": "multi-hop-qa", "synthesize": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("query: status %d: %s", rec.Code, rec.Body.String())
	}
	if decode(t, rec)["synthesis_error"] == nil {
		t.Error("expected synthesis error without an agent")
	}

	rec = do(t, srv, http.MethodGet, "/api/sessions/"+id, nil)
	if q := decode(t, rec)["queries"].(float64); q != 2 {
		t.Errorf("expected 2 queries counted, got %v", q)
	}

	for name, req := range map[string]map[string]any{
		"empty query":   {"query": "  "},
		"bad archetype": {"query": "q", "archetype": "poetry"},
		"bad pattern":   {"query": "q", "pattern": "["},
	} {
		t.Run(name, func(t *testing.T) {
			if rec := do(t, srv, http.MethodPost, path, req); rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLLMStats_Unavailable(t *testing.T) {
	srv := newTestServer(t, 0)
	if rec := do(t, srv, http.MethodGet, "/api/stats/llm", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\Users\me\doc.txt`: "doc.txt",
		"":                    "unnamed",
		"a..b.txt":            "a_b.txt",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
