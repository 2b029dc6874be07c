package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/embed"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/indexer"
	"github.com/starford/mimir/internal/notify"
	"github.com/starford/mimir/internal/queryservice"
	"github.com/starford/mimir/internal/vector"
)

// testEnv sets up a temp DB, services, and router.
// authToken == "" means auth disabled.
func testEnv(t *testing.T, authToken string) (*index.DB, *vector.Index, embed.Embedder, http.Handler) {
	t.Helper()

	dbFile, err := os.CreateTemp("", "mimir-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	embedder, err := embed.New(embed.Config{Provider: embed.ProviderStatic})
	if err != nil {
		t.Fatal(err)
	}
	vectors := vector.New(embedder.Dimensions())

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	notifier := notify.New(20*time.Millisecond, func() {})
	t.Cleanup(notifier.Close)

	idx := indexer.New(db, embedder, vectors, notifier, nil, logger)
	t.Cleanup(idx.Stop)

	svc := queryservice.NewService(db, embedder, vectors, logger)
	router := NewRouter(svc, idx, authToken != "", authToken, nil)
	return db, vectors, embedder, router
}

// seedDoc inserts a fully indexed document directly.
func seedDoc(t *testing.T, db *index.DB, vectors *vector.Index, embedder embed.Embedder, path, title, body string) string {
	t.Helper()
	id := checksum.DocumentID(path)
	if err := db.InsertDocument(id, path, checksum.Sum([]byte(body))); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceFullText(path, title, body); err != nil {
		t.Fatal(err)
	}
	vec, err := embedder.Embed(context.Background(), body)
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) > 0 {
		if err := db.PutEmbedding(id, vec); err != nil {
			t.Fatal(err)
		}
		if err := vectors.Add(id, vec); err != nil {
			t.Fatal(err)
		}
	}
	return id
}

func get(router http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStatus_InitiallyStopped(t *testing.T) {
	_, _, _, router := testEnv(t, "")

	w := get(router, "/index/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Running {
		t.Error("running = true before any start")
	}
	if resp.Documents != 0 {
		t.Errorf("documents = %d, want 0", resp.Documents)
	}
}

func TestStartStopIndexing(t *testing.T) {
	_, _, _, router := testEnv(t, "")

	vaultDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(vaultDir, "doc.md"), []byte("# Doc\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(StartIndexingRequest{Root: vaultDir})
	req := httptest.NewRequest(http.MethodPost, "/index/start", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Running || resp.Root != vaultDir {
		t.Errorf("start response = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodPost, "/index/stop", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("stop status = %d", w.Code)
	}

	w = get(router, "/index/status", "")
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Running {
		t.Error("running = true after stop")
	}
}

func TestStartIndexing_BadRoot(t *testing.T) {
	_, _, _, router := testEnv(t, "")

	body, _ := json.Marshal(StartIndexingRequest{Root: "/no/such/vault"})
	req := httptest.NewRequest(http.MethodPost, "/index/start", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("start with bad root = %d, want 400", w.Code)
	}
}

func TestSearch(t *testing.T) {
	db, vectors, embedder, router := testEnv(t, "")
	seedDoc(t, db, vectors, embedder, "hello.md", "Hello", "a greeting document about salutations")

	w := get(router, "/search?q=salutations", "")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "hello.md" {
		t.Errorf("results = %+v", resp.Results)
	}

	w = get(router, "/search", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("search without q = %d, want 400", w.Code)
	}
}

func TestSemanticSearch(t *testing.T) {
	db, vectors, embedder, router := testEnv(t, "")
	seedDoc(t, db, vectors, embedder, "cooking.md", "Cooking", "pasta sauce and bread baking recipes")

	w := get(router, "/search/semantic?q=pasta+recipes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("semantic status = %d", w.Code)
	}
	var resp SemanticSearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) == 0 {
		t.Fatal("no semantic results")
	}
	if resp.Results[0].Path != "cooking.md" {
		t.Errorf("top hit = %+v", resp.Results[0])
	}
}

func TestGraphAndRelated(t *testing.T) {
	db, vectors, embedder, router := testEnv(t, "")

	a := seedDoc(t, db, vectors, embedder, "a.md", "Alpha", "links to beta")
	seedDoc(t, db, vectors, embedder, "b.md", "Beta", "gets linked")
	if err := db.ReplaceLinks(a, []string{"b.md", "Missing Page"}); err != nil {
		t.Fatal(err)
	}

	w := get(router, "/graph", "")
	if w.Code != http.StatusOK {
		t.Fatalf("graph status = %d", w.Code)
	}
	var graph GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &graph)
	if len(graph.Nodes) != 3 {
		t.Errorf("nodes = %d, want 2 documents + 1 ghost", len(graph.Nodes))
	}
	ghosts := 0
	for _, n := range graph.Nodes {
		if !n.Exists {
			ghosts++
		}
	}
	if ghosts != 1 {
		t.Errorf("ghost nodes = %d, want 1", ghosts)
	}
	if len(graph.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(graph.Edges))
	}

	w = get(router, "/related?path=a.md", "")
	if w.Code != http.StatusOK {
		t.Fatalf("related status = %d", w.Code)
	}
	var related RelatedResponse
	_ = json.Unmarshal(w.Body.Bytes(), &related)
	if len(related.Related) != 1 || related.Related[0].Path != "b.md" {
		t.Errorf("related = %+v", related.Related)
	}

	w = get(router, "/related?path=nope.md", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("related unknown path = %d, want 404", w.Code)
	}
}

func TestTasks(t *testing.T) {
	db, vectors, embedder, router := testEnv(t, "")

	id := seedDoc(t, db, vectors, embedder, "todo.md", "Todo", "task list")
	if err := db.ReplaceTasks(id, []index.TaskItem{
		{Content: "open item", Completed: false},
		{Content: "done item", Completed: true},
	}); err != nil {
		t.Fatal(err)
	}

	w := get(router, "/tasks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("tasks status = %d", w.Code)
	}
	var resp TasksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(resp.Tasks))
	}
	if resp.Tasks[0].Completed || !resp.Tasks[1].Completed {
		t.Error("open tasks should sort before completed ones")
	}
	if resp.Tasks[0].Path != "todo.md" || resp.Tasks[0].Title != "Todo" {
		t.Errorf("task annotation = %+v", resp.Tasks[0])
	}
}

func TestAuth(t *testing.T) {
	db, vectors, embedder, router := testEnv(t, "secret-token")
	seedDoc(t, db, vectors, embedder, "a.md", "Alpha", "body")

	if w := get(router, "/index/status", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := get(router, "/index/status", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := get(router, "/index/status", "secret-token"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}
