package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/errs"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/jobs"
	"github.com/jackzampolin/lectern/internal/personas"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/query"
	"github.com/jackzampolin/lectern/internal/rag"
	"github.com/jackzampolin/lectern/internal/status"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/store/memory"
	"github.com/jackzampolin/lectern/internal/testutil"
	"github.com/jackzampolin/lectern/internal/trigger"
)

const testToken = "test-token"

const testConfig = `
server:
  api_token: test-token
storage:
  endpoint: ""
vector:
  path: "-"
embeddings:
  dimensions: 8
`

type docLoader map[string][]byte

func (d docLoader) Load(ctx context.Context, bookID string) ([]byte, error) {
	data, ok := d[bookID]
	if !ok {
		return nil, errs.NotFound("docLoader.Load", "document for book %s not found", bookID)
	}
	return data, nil
}

type fixture struct {
	srv   *Server
	store *memory.Store
	docs  docLoader
	llm   *providers.MockClient
}

func newFixture(t *testing.T, start bool) *fixture {
	t.Helper()
	tc := testutil.NewServerConfig(t, testConfig)

	mgr, err := config.NewManager(tc.ConfigFile)
	if err != nil {
		t.Fatalf("config.NewManager() error = %v", err)
	}
	st, err := memory.New("")
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}

	llm := providers.NewMockClient()
	llm.Respond = func(req *providers.ChatRequest) (string, error) {
		switch {
		case req.MaxTokens == query.DefaultMaxTokens:
			return "rabbit hole", nil
		case req.Temperature == personas.DefaultTemperature:
			return `[{"name":"Alice","role":"the heroine","persona":"Curious and polite."}]`, nil
		}
		return "Alice followed the rabbit.", nil
	}

	dir, err := home.New(tc.HomePath)
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}

	docs := docLoader{}
	srv, err := New(Config{
		Host:          tc.Host,
		Port:          tc.Port,
		ConfigManager: mgr,
		Home:          dir,
		Logger:        tc.Logger,
		Store:         st,
		Registry:      providers.NewRegistry(llm, providers.NewMockEmbedder(8)),
		Loader:        docs,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if start {
		services, err := srv.buildServices(context.Background())
		if err != nil {
			t.Fatalf("buildServices() error = %v", err)
		}
		srv.services = services
		t.Cleanup(func() { services.Scheduler.Shutdown(context.Background()) })
	}
	return &fixture{srv: srv, store: st, docs: docs, llm: llm}
}

func (f *fixture) addBook(t *testing.T, category string) *store.Book {
	t.Helper()
	b := &store.Book{Title: "Alice", Category: category, FileType: "text/plain"}
	if err := f.store.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("CreateBook() error = %v", err)
	}
	text := "Chapter 1: Down the Rabbit Hole\n" + strings.Repeat("Alice was beginning to get very tired. ", 20) +
		"\f" + strings.Repeat("She ran across the field after the rabbit. ", 20)
	f.docs[b.ID] = []byte(text)
	return b
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testToken}
}

func TestServer_RequireInit(t *testing.T) {
	f := newFixture(t, false)

	if rec := f.do(t, "GET", "/health", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rec.Code)
	}
	if rec := f.do(t, "GET", "/api/jobs", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/jobs before init = %d, want 503", rec.Code)
	}
	if rec := f.do(t, "GET", "/ready", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready before init = %d, want 503", rec.Code)
	}
}

func TestServer_ProcessAuth(t *testing.T) {
	f := newFixture(t, true)
	book := f.addBook(t, store.CategoryNonFiction)
	body := pipeline.TriggerRequest{BookID: book.ID}

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing token", nil, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"not bearer", map[string]string{"Authorization": testToken}, http.StatusUnauthorized},
		{"valid token", authHeader(), http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, "POST", trigger.ProcessPath, body, tt.header)
			if rec.Code != tt.want {
				t.Errorf("POST /api/process = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestServer_ProcessThenChat(t *testing.T) {
	f := newFixture(t, true)
	book := f.addBook(t, store.CategoryFiction)
	scheduler := f.srv.Services().Scheduler

	header := authHeader()
	header[trigger.IdempotencyHeader] = "key-1"

	rec := f.do(t, "POST", trigger.ProcessPath, pipeline.TriggerRequest{BookID: book.ID}, header)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/process = %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decode[pipeline.Accepted](t, rec)
	if accepted.BookID != book.ID || accepted.JobID == "" {
		t.Fatalf("accepted = %+v", accepted)
	}

	t.Run("chat refused while processing", func(t *testing.T) {
		got, _ := f.store.GetBook(context.Background(), book.ID)
		if got.Status.Searchable() {
			t.Skip("pipeline already reached embeddings")
		}
		rec := f.do(t, "POST", "/api/books/"+book.ID+"/ask", rag.Request{Message: "Who is Alice?"}, nil)
		if rec.Code != http.StatusConflict {
			t.Errorf("ask during processing = %d, want 409", rec.Code)
		}
	})

	scheduler.Wait()

	t.Run("job completed", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/jobs/"+accepted.JobID, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET job = %d", rec.Code)
		}
		record := decode[jobs.Record](t, rec)
		if record.Status != jobs.StatusCompleted {
			t.Errorf("job status = %s, want completed (error %q)", record.Status, record.Error)
		}
		if record.Metadata["book_id"] != book.ID {
			t.Errorf("job metadata book_id = %v", record.Metadata["book_id"])
		}
	})

	t.Run("book completed", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/books/"+book.ID, nil, nil)
		got := decode[store.Book](t, rec)
		if got.Status != status.Completed || got.Progress != 100 {
			t.Errorf("book = %s/%d, want completed/100", got.Status, got.Progress)
		}
		if got.ProgressText != "Completed" {
			t.Errorf("progress_text = %q, want Completed", got.ProgressText)
		}
	})

	t.Run("replayed key returns the same job", func(t *testing.T) {
		rec := f.do(t, "POST", trigger.ProcessPath, pipeline.TriggerRequest{BookID: book.ID}, header)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("replay = %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Idempotent-Replayed") != "true" {
			t.Error("missing replay header")
		}
		if got := decode[pipeline.Accepted](t, rec); got.JobID != accepted.JobID {
			t.Errorf("replayed job = %s, want %s", got.JobID, accepted.JobID)
		}
	})

	t.Run("completed book needs force", func(t *testing.T) {
		rec := f.do(t, "POST", trigger.ProcessPath, pipeline.TriggerRequest{BookID: book.ID}, authHeader())
		if rec.Code != http.StatusConflict {
			t.Errorf("re-trigger = %d, want 409", rec.Code)
		}
	})

	t.Run("characters listed", func(t *testing.T) {
		rec := f.do(t, "GET", "/api/books/"+book.ID+"/characters", nil, nil)
		resp := decode[struct {
			Characters []store.Character `json:"characters"`
		}](t, rec)
		if len(resp.Characters) != 1 || resp.Characters[0].Name != "Alice" {
			t.Errorf("characters = %+v", resp.Characters)
		}
	})

	t.Run("ask", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/books/"+book.ID+"/ask", rag.Request{Message: "Who is Alice?"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("ask = %d: %s", rec.Code, rec.Body.String())
		}
		reply := decode[rag.Reply](t, rec)
		if reply.Answer != "Alice followed the rabbit." || len(reply.Sources) == 0 {
			t.Errorf("reply = %+v", reply)
		}
		if reply.Query != "rabbit hole" {
			t.Errorf("query = %q, want rewritten", reply.Query)
		}
	})

	t.Run("chat with character", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/books/"+book.ID+"/characters/Alice/chat", rag.Request{Message: "Hello"}, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("chat = %d: %s", rec.Code, rec.Body.String())
		}
		if reply := decode[rag.Reply](t, rec); reply.Mode != "persona" {
			t.Errorf("mode = %s, want persona", reply.Mode)
		}
	})

	t.Run("unknown character", func(t *testing.T) {
		rec := f.do(t, "POST", "/api/books/"+book.ID+"/characters/Nobody/chat", rag.Request{Message: "Hello"}, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("chat with unknown = %d, want 404", rec.Code)
		}
	})
}

func TestServer_Ready(t *testing.T) {
	f := newFixture(t, true)
	rec := f.do(t, "GET", "/ready", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /ready = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rec)
	if resp.Checks["store"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
	if _, ok := resp.Checks["storage"]; ok {
		t.Error("storage checked although no endpoint is configured")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	f := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Start(ctx) }()
	starter := testutil.StartServer{Cancel: cancel, Done: done}
	defer starter.Stop()

	url := "http://" + f.srv.Addr()
	if err := testutil.WaitForServer(url, 10*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}
	if !f.srv.IsRunning() {
		t.Error("IsRunning() = false, want true")
	}

	st, err := testutil.GetStatus(url)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Providers.LLM != providers.MockClientName || st.Providers.Dimensions != 8 {
		t.Errorf("status providers = %+v", st.Providers)
	}
	if st.Database.Driver != "memory" {
		t.Errorf("database driver = %s, want memory", st.Database.Driver)
	}

	if err := f.srv.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}

	cancel()
	if err := testutil.WaitForShutdown(done, 10*time.Second); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
	starter.Done = nil
	if f.srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}
