// Package indexer owns the indexing lifecycle: it walks a vault on start,
// watches it for changes, and keeps the document index, link graph, task
// table, and vector index in sync with the files on disk.
package indexer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/checksum"
	"github.com/starford/mimir/internal/embed"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/notify"
	"github.com/starford/mimir/internal/parser"
	"github.com/starford/mimir/internal/sse"
	"github.com/starford/mimir/internal/storage"
	"github.com/starford/mimir/internal/vector"
)

type eventKind int

const (
	kindAdd eventKind = iota
	kindChange
)

// Publisher broadcasts indexing lifecycle events to subscribed clients.
type Publisher interface {
	Publish(event sse.Event)
}

// job carries the deferred work for one indexed document: link and task
// replacement plus embedding generation. The primary write path (document
// row and full-text entry) completes before the job is enqueued, so search
// is usable while this backlog drains.
type job struct {
	docID string
	path  string
	text  string
	links []string
	tasks []index.TaskItem
}

// Indexer coordinates the watcher, the scan, and the deferred worker.
// It is safe for concurrent use; Start and Stop may be called repeatedly.
type Indexer struct {
	db       *index.DB
	embedder embed.Embedder
	vectors  *vector.Index
	notifier *notify.Debouncer
	events   Publisher // may be nil
	logger   *slog.Logger

	locks keyedLocks

	mu      sync.Mutex
	running bool
	root    string
	store   *storage.FS
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
}

func New(db *index.DB, embedder embed.Embedder, vectors *vector.Index, notifier *notify.Debouncer, events Publisher, logger *slog.Logger) *Indexer {
	return &Indexer{
		db:       db,
		embedder: embedder,
		vectors:  vectors,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// Start begins indexing the vault rooted at root. Any previous session is
// stopped first, and all previously indexed state is cleared before the
// watcher and the initial scan begin. An unreadable root is a fatal error
// and leaves the indexer stopped.
func (ix *Indexer) Start(ctx context.Context, root string) error {
	ix.Stop()

	store, err := storage.NewFS(root)
	if err != nil {
		return err
	}

	w, err := newWatcher(store.Root())
	if err != nil {
		return err
	}

	if err := ix.db.Clear(); err != nil {
		w.Close()
		return err
	}
	ix.vectors.Clear()

	// The session outlives the caller's context (which may be a single
	// HTTP request); its lifetime is bounded by Stop.
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wg := &sync.WaitGroup{}
	jobs := make(chan job, 256)

	ix.mu.Lock()
	ix.running = true
	ix.root = store.Root()
	ix.store = store
	ix.cancel = cancel
	ix.wg = wg
	ix.mu.Unlock()

	wg.Add(3)
	go func() {
		defer wg.Done()
		ix.watch(watchCtx, w, store, jobs, wg)
	}()
	go func() {
		defer wg.Done()
		ix.worker(watchCtx, jobs)
	}()
	go func() {
		defer wg.Done()
		ix.initialScan(watchCtx, store, jobs)
	}()

	ix.publish(sse.EventIndexingStarted, map[string]string{"root": store.Root()})
	ix.logger.Info("indexer: started", "root", store.Root())
	return nil
}

// Stop cancels the watch session and waits for the watcher, the worker, and
// every in-flight event handler to finish, so no write from this session
// can land after Stop returns. Calling Stop on a stopped indexer is a no-op.
func (ix *Indexer) Stop() {
	ix.mu.Lock()
	if !ix.running {
		ix.mu.Unlock()
		return
	}
	cancel := ix.cancel
	wg := ix.wg
	ix.running = false
	ix.root = ""
	ix.store = nil
	ix.cancel = nil
	ix.wg = nil
	ix.mu.Unlock()

	cancel()
	wg.Wait()
	ix.publish(sse.EventIndexingStopped, map[string]string{})
	ix.logger.Info("indexer: stopped")
}

func (ix *Indexer) publish(eventType string, data map[string]string) {
	if ix.events != nil {
		ix.events.Publish(sse.Event{Type: eventType, Data: data})
	}
}

// IsRunning reports whether a watch session is active.
func (ix *Indexer) IsRunning() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.running
}

// Root returns the absolute vault root of the active session, or "" when
// stopped.
func (ix *Indexer) Root() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.root
}

// ReadFile returns the raw bytes of a vault file by its relative path.
// It fails with apperr.ErrNotRunning when no session is active.
func (ix *Indexer) ReadFile(rel string) ([]byte, error) {
	ix.mu.Lock()
	store := ix.store
	ix.mu.Unlock()

	if store == nil {
		return nil, apperr.ErrNotRunning
	}
	return store.Read(rel)
}

// initialScan indexes every qualifying file already present under the root.
// Files are treated as adds; one change notification is emitted when the
// scan completes.
func (ix *Indexer) initialScan(ctx context.Context, store *storage.FS, jobs chan<- job) {
	metas, err := store.List()
	if err != nil {
		ix.logger.Error("indexer: scan failed", "error", err)
		return
	}

	indexed := 0
	for _, m := range metas {
		if ctx.Err() != nil {
			return
		}
		if err := ix.processFile(ctx, store, jobs, m.Path, kindAdd); err == nil {
			indexed++
		}
	}

	ix.logger.Info("indexer: scan complete", "files", indexed)
	ix.notifier.Notify()
}

// processFile indexes one document's primary data, then hands the deferred
// work to the queue. The keyed lock is released before the send: the worker
// takes the same lock per job, so holding it across a blocked send on a
// full queue would wedge both sides.
func (ix *Indexer) processFile(ctx context.Context, store *storage.FS, jobs chan<- job, rel string, kind eventKind) error {
	j, err := ix.indexPrimary(store, rel, kind)
	if err != nil {
		return err
	}

	select {
	case jobs <- j:
	case <-ctx.Done():
	}
	return nil
}

// indexPrimary reads, parses, and writes one document's row and full-text
// entry under the per-document lock. The read happens under the lock so a
// concurrent removal cannot be undone by a stale event: once the file is
// gone the read fails and the event is dropped.
func (ix *Indexer) indexPrimary(store *storage.FS, rel string, kind eventKind) (job, error) {
	id := checksum.DocumentID(rel)

	unlock := ix.locks.lock(id)
	defer unlock()

	data, err := store.Read(rel)
	if err != nil {
		ix.logger.Warn("indexer: read failed, dropping event", "path", rel, "error", err)
		return job{}, err
	}

	res := parser.Parse(data, rel)
	fingerprint := checksum.Sum(data)

	if err := ix.db.InsertDocument(id, rel, fingerprint); err != nil {
		ix.logger.Warn("indexer: insert failed", "path", rel, "error", err)
		return job{}, err
	}
	if kind == kindChange {
		if err := ix.db.TouchDocument(id, fingerprint); err != nil {
			ix.logger.Warn("indexer: touch failed", "path", rel, "error", err)
			return job{}, err
		}
	}
	if err := ix.db.ReplaceFullText(rel, res.Title, res.PlainText); err != nil {
		ix.logger.Warn("indexer: fulltext update failed", "path", rel, "error", err)
		return job{}, err
	}

	tasks := make([]index.TaskItem, 0, len(res.Tasks))
	for _, t := range res.Tasks {
		tasks = append(tasks, index.TaskItem{Content: t.Content, Completed: t.Completed})
	}

	return job{docID: id, path: rel, text: res.PlainText, links: res.Links, tasks: tasks}, nil
}

// removeFile drops a document and everything derived from it.
func (ix *Indexer) removeFile(rel string) {
	id := checksum.DocumentID(rel)

	unlock := ix.locks.lock(id)
	defer unlock()

	if err := ix.db.RemoveDocument(id, rel); err != nil {
		ix.logger.Warn("indexer: remove failed", "path", rel, "error", err)
		return
	}
	ix.vectors.Delete(id)
	ix.notifier.Notify()
}

// worker drains the deferred job queue one document at a time: link rows,
// task rows, then the embedding. A document deleted while its job was
// queued makes the inserts fail on the foreign key, which is the intended
// outcome; the job is simply dropped.
func (ix *Indexer) worker(ctx context.Context, jobs <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			ix.processDeferred(ctx, j)
		}
	}
}

func (ix *Indexer) processDeferred(ctx context.Context, j job) {
	unlock := ix.locks.lock(j.docID)
	defer unlock()

	if err := ix.db.ReplaceLinks(j.docID, j.links); err != nil {
		ix.logger.Debug("indexer: link update skipped", "path", j.path, "error", err)
		return
	}
	if err := ix.db.ReplaceTasks(j.docID, j.tasks); err != nil {
		ix.logger.Debug("indexer: task update skipped", "path", j.path, "error", err)
		return
	}

	vec, err := ix.embedder.Embed(ctx, j.text)
	if err != nil {
		ix.logger.Warn("indexer: embedding failed", "path", j.path, "error", err)
	} else if len(vec) > 0 {
		if err := ix.db.PutEmbedding(j.docID, vec); err != nil {
			ix.logger.Debug("indexer: embedding store skipped", "path", j.path, "error", err)
		} else if err := ix.vectors.Add(j.docID, vec); err != nil {
			ix.logger.Warn("indexer: vector index update failed", "path", j.path, "error", err)
		}
	}

	ix.notifier.Notify()
}
