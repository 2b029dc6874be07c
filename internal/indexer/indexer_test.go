package indexer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/embed"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/notify"
	"github.com/starford/mimir/internal/sse"
	"github.com/starford/mimir/internal/storage"
	"github.com/starford/mimir/internal/vector"
)

// testEnv builds an indexer over a temp vault and a temp database.
func testEnv(t *testing.T) (string, *index.DB, *vector.Index, *Indexer, *atomic.Int32) {
	t.Helper()

	vaultDir := t.TempDir()

	dbFile, err := os.CreateTemp("", "mimir-indexer-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	embedder, err := embed.New(embed.Config{Provider: embed.ProviderStatic})
	if err != nil {
		t.Fatal(err)
	}
	vectors := vector.New(embedder.Dimensions())

	var signals atomic.Int32
	notifier := notify.New(20*time.Millisecond, func() { signals.Add(1) })
	t.Cleanup(notifier.Close)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ix := New(db, embedder, vectors, notifier, nil, logger)
	t.Cleanup(ix.Stop)

	return vaultDir, db, vectors, ix, &signals
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStart_BadRootFails(t *testing.T) {
	_, _, _, ix, _ := testEnv(t)

	if err := ix.Start(context.Background(), "/nonexistent/vault/path"); err == nil {
		t.Fatal("expected error for missing root")
	}
	if ix.IsRunning() {
		t.Error("indexer should not be running after failed start")
	}
}

func TestStart_ScansExistingFiles(t *testing.T) {
	vaultDir, db, vectors, ix, signals := testEnv(t)

	writeDoc(t, vaultDir, "alpha.md", "# Alpha\n\nLinks to [[Beta]].\n\n- [ ] ship it\n")
	writeDoc(t, vaultDir, "sub/beta.md", "# Beta\n\nsome body text here\n")
	writeDoc(t, vaultDir, ".hidden/skip.md", "# Hidden\n")
	writeDoc(t, vaultDir, "notes.txt", "not markdown")

	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	if !ix.IsRunning() {
		t.Fatal("IsRunning = false after Start")
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		docs, err := db.AllDocuments()
		return err == nil && len(docs) == 2
	}, "initial scan should index exactly the two markdown files")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		tasks, err := db.Tasks()
		return err == nil && len(tasks) == 1
	}, "task from alpha.md not indexed")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return vectors.Len() == 2
	}, "embeddings for both documents not in vector index")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return signals.Load() >= 1
	}, "no change notification after scan")
}

func TestWatch_NewFileIndexed(t *testing.T) {
	vaultDir, db, _, ix, _ := testEnv(t)

	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	writeDoc(t, vaultDir, "new.md", "# New\n\nfresh content\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetDocumentByPath("new.md")
		return err == nil
	}, "new file not indexed by watcher")
}

func TestWatch_EditUpdatesFingerprint(t *testing.T) {
	vaultDir, db, _, ix, _ := testEnv(t)

	writeDoc(t, vaultDir, "doc.md", "# Doc\n\nversion one\n")
	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetDocumentByPath("doc.md")
		return err == nil
	}, "doc.md not indexed by scan")

	first, err := db.GetDocumentByPath("doc.md")
	if err != nil {
		t.Fatal(err)
	}

	writeDoc(t, vaultDir, "doc.md", "# Doc\n\nversion two\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		row, getErr := db.GetDocumentByPath("doc.md")
		return getErr == nil && row.Fingerprint != first.Fingerprint
	}, "fingerprint not updated after edit")

	row, err := db.GetDocumentByPath("doc.md")
	if err != nil {
		t.Fatal(err)
	}
	if row.ID != first.ID {
		t.Errorf("document ID changed on edit: %s != %s", row.ID, first.ID)
	}
	if row.CreatedAt != first.CreatedAt {
		t.Errorf("created_at changed on edit")
	}
}

func TestWatch_DeleteRemovesEverything(t *testing.T) {
	vaultDir, db, vectors, ix, _ := testEnv(t)

	writeDoc(t, vaultDir, "gone.md", "# Gone\n\n- [x] done task\n")
	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return vectors.Len() == 1
	}, "gone.md not fully indexed before delete")

	if err := os.Remove(filepath.Join(vaultDir, "gone.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetDocumentByPath("gone.md")
		return errors.Is(err, apperr.ErrNotFound)
	}, "deleted file still has a document row")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		tasks, err := db.Tasks()
		return err == nil && len(tasks) == 0
	}, "tasks of deleted file still present")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return vectors.Len() == 0
	}, "vector entry of deleted file still present")
}

func TestWatch_NewDirScanned(t *testing.T) {
	vaultDir, db, _, ix, _ := testEnv(t)

	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "subdir")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	writeDoc(t, vaultDir, "subdir/deep.md", "# Deep\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetDocumentByPath(filepath.Join("subdir", "deep.md"))
		return err == nil
	}, "file in new subdir not indexed")
}

func TestRestart_ClearsPreviousVault(t *testing.T) {
	vaultDir, db, _, ix, _ := testEnv(t)

	writeDoc(t, vaultDir, "old.md", "# Old\n")
	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetDocumentByPath("old.md")
		return err == nil
	}, "old vault not indexed")

	otherVault := t.TempDir()
	writeDoc(t, otherVault, "fresh.md", "# Fresh\n")

	if err := ix.Start(context.Background(), otherVault); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, freshErr := db.GetDocumentByPath("fresh.md")
		_, oldErr := db.GetDocumentByPath("old.md")
		return freshErr == nil && errors.Is(oldErr, apperr.ErrNotFound)
	}, "restart should index the new vault and drop the old one")

	if got := ix.Root(); got != otherVault {
		t.Errorf("Root = %q, want %q", got, otherVault)
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	vaultDir, _, _, ix, _ := testEnv(t)

	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	ix.Stop()
	ix.Stop()

	if ix.IsRunning() {
		t.Error("IsRunning = true after Stop")
	}
	if ix.Root() != "" {
		t.Errorf("Root = %q after Stop, want empty", ix.Root())
	}
}

// The worker takes the per-document lock for every job, so an upsert must
// not hold that lock while its own enqueue is blocked on a full queue.
func TestUpsert_FullQueueDoesNotStallWorker(t *testing.T) {
	vaultDir, db, _, ix, _ := testEnv(t)

	writeDoc(t, vaultDir, "doc.md", "# Doc\n\nbody\n")

	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}

	// Unbuffered channel: the enqueue in processFile blocks until drained,
	// standing in for a queue filled to capacity.
	jobs := make(chan job)

	upsertDone := make(chan struct{})
	go func() {
		defer close(upsertDone)
		_ = ix.processFile(context.Background(), store, jobs, "doc.md", kindAdd)
	}()

	eventually(t, 5*time.Second, 10*time.Millisecond, func() bool {
		_, getErr := db.GetDocumentByPath("doc.md")
		return getErr == nil
	}, "primary write for doc.md did not land")

	// With the enqueue still pending, the worker must be able to take the
	// same document's lock and finish a queued job.
	id := checksum.DocumentID("doc.md")
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		ix.processDeferred(context.Background(), job{docID: id, path: "doc.md"})
	}()

	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("worker blocked on the document lock while an enqueue was pending")
	}

	<-jobs
	select {
	case <-upsertDone:
	case <-time.After(5 * time.Second):
		t.Fatal("upsert did not finish after the queue drained")
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *eventRecorder) Publish(event sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func TestStartStop_PublishesLifecycleEvents(t *testing.T) {
	vaultDir, db, vectors, _, _ := testEnv(t)

	rec := &eventRecorder{}
	embedder, err := embed.New(embed.Config{Provider: embed.ProviderStatic})
	if err != nil {
		t.Fatal(err)
	}
	notifier := notify.New(20*time.Millisecond, func() {})
	t.Cleanup(notifier.Close)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ix := New(db, embedder, vectors, notifier, rec, logger)
	t.Cleanup(ix.Stop)

	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	ix.Stop()

	got := rec.types()
	want := []string{sse.EventIndexingStarted, sse.EventIndexingStopped}
	if len(got) != len(want) {
		t.Fatalf("published events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// Stop must join in-flight handlers so no write from the old session lands
// after it returns.
func TestStop_NoWritesLandAfterStop(t *testing.T) {
	vaultDir, db, _, ix, _ := testEnv(t)

	for i := 0; i < 25; i++ {
		writeDoc(t, vaultDir, filepath.Join("notes", "doc"+string(rune('a'+i))+".md"),
			"# Doc\n\nLinks to [[Other]].\n\n- [ ] task\n")
	}

	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}
	ix.Stop()

	if err := db.Clear(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	docs, err := db.AllDocuments()
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("%d document writes landed after Stop returned", len(docs))
	}
}

func TestReadFile(t *testing.T) {
	vaultDir, _, _, ix, _ := testEnv(t)

	if _, err := ix.ReadFile("doc.md"); !errors.Is(err, apperr.ErrNotRunning) {
		t.Errorf("ReadFile while stopped = %v, want ErrNotRunning", err)
	}

	writeDoc(t, vaultDir, "doc.md", "# Doc\n")
	if err := ix.Start(context.Background(), vaultDir); err != nil {
		t.Fatal(err)
	}

	data, err := ix.ReadFile("doc.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# Doc\n" {
		t.Errorf("ReadFile = %q", data)
	}

	if _, err := ix.ReadFile("../escape.md"); err == nil {
		t.Error("expected error for traversal path")
	}
}
