// Package buildqueue implements the persistent build queue engine: durable
// submission, bounded-concurrency scheduling, per-build execution, live and
// finished output retrieval, and crash recovery from the durable store.
package buildqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/paulcbetts/peasant/internal/buildscript"
	"github.com/paulcbetts/peasant/internal/events"
	"github.com/paulcbetts/peasant/internal/forge"
	"github.com/paulcbetts/peasant/internal/git"
	"github.com/paulcbetts/peasant/internal/metrics"
)

// defaultPriority is the single level passed to the operation queue.
const defaultPriority = 1

// Config parameterizes the engine.
type Config struct {
	// MaxConcurrency bounds how many builds run at once (2 when zero).
	MaxConcurrency int

	// Account is the caller's own account name; scripts owned by it skip
	// the hosting-service accessibility check.
	Account string

	// SubmitBuffer sizes the intake channel (64 when zero). When full,
	// Enqueue blocks.
	SubmitBuffer int
}

// Deps are the engine's collaborators. Store, Provisioner, Forge, Fetcher,
// and Runner are required; Emitter and Recorder default to no-ops.
type Deps struct {
	Store       *RecordStore
	Provisioner git.Provisioner
	Forge       forge.Client
	Fetcher     buildscript.Fetcher
	Runner      buildscript.Runner
	Emitter     events.Emitter
	Recorder    metrics.Recorder
}

// PendingBuild is the handle returned by Enqueue. Done yields the
// completed record exactly once; it never fails — build failure is a
// non-zero ExitCode inside the record.
type PendingBuild struct {
	ID   uint64
	Done <-chan *BuildRecord
}

// Engine is the build queue. Start must be called before Enqueue or
// GetOutput; Stop drains in-flight builds.
type Engine struct {
	cfg  Config
	deps Deps

	ids         atomic.Uint64
	registry    *Registry
	opq         *OperationQueue
	submissions chan *LiveBuild

	wmu     sync.Mutex
	waiters map[uint64][]chan *BuildRecord

	started    atomic.Bool
	stopOnce   sync.Once
	stopCh     chan struct{}
	consumerWG sync.WaitGroup
}

// NewEngine creates an engine. It panics when a required dependency is
// missing.
func NewEngine(cfg Config, deps Deps) *Engine {
	if deps.Store == nil {
		panic("NewEngine: store is required")
	}
	if deps.Provisioner == nil {
		panic("NewEngine: workspace provisioner is required")
	}
	if deps.Forge == nil {
		panic("NewEngine: forge client is required")
	}
	if deps.Fetcher == nil {
		panic("NewEngine: script fetcher is required")
	}
	if deps.Runner == nil {
		panic("NewEngine: script runner is required")
	}
	if deps.Emitter == nil {
		deps.Emitter = events.NoopEmitter{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 2
	}
	if cfg.SubmitBuffer <= 0 {
		cfg.SubmitBuffer = 64
	}

	return &Engine{
		cfg:         cfg,
		deps:        deps,
		registry:    NewRegistry(),
		opq:         NewOperationQueue(cfg.MaxConcurrency),
		submissions: make(chan *LiveBuild, cfg.SubmitBuffer),
		waiters:     make(map[uint64][]chan *BuildRecord),
		stopCh:      make(chan struct{}),
	}
}

// Start seeds the id allocator from the durable store, snapshots the
// persisted queued records, and opens the intake path. Recovered builds
// are admitted in ascending id order before any live submission.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("engine already started")
	}

	maxID, err := e.deps.Store.MaxID(ctx)
	if err != nil {
		e.started.Store(false)
		return fmt.Errorf("seed id allocator: %w", err)
	}
	e.ids.Store(maxID)

	recovered, err := e.deps.Store.ListQueued(ctx)
	if err != nil {
		e.started.Store(false)
		return fmt.Errorf("snapshot queued records: %w", err)
	}

	slog.Info("Starting build queue",
		"max_concurrency", e.cfg.MaxConcurrency,
		"recovered", len(recovered),
		"next_id", maxID+1)

	e.consumerWG.Add(1)
	go e.consume(ctx, recovered)
	return nil
}

// Stop closes the intake path and waits for in-flight builds to finish.
// Builds run to their natural termination; there is no cancellation.
func (e *Engine) Stop(ctx context.Context) {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.consumerWG.Wait()
	e.opq.Wait()
}

// Enqueue accepts a build request. The record is durably written under
// queued/<id> before the request can propagate toward admission; the
// returned handle resolves when the build completes.
func (e *Engine) Enqueue(ctx context.Context, req BuildRequest) (*PendingBuild, error) {
	if !e.started.Load() {
		return nil, errors.New("engine not started")
	}
	if req.RepoURL == "" || req.Commit == "" || req.BuildScriptURL == "" {
		return nil, errors.New("repo URL, commit, and build script URL are required")
	}

	id := e.ids.Add(1)
	rec := &BuildRecord{
		ID:             id,
		RepoURL:        req.RepoURL,
		Commit:         req.Commit,
		BuildScriptURL: req.BuildScriptURL,
		workspaceRoot:  req.WorkspaceRoot,
	}

	if err := e.deps.Store.PutQueued(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist queued record: %w", err)
	}

	done := make(chan *BuildRecord, 1)
	e.addWaiter(id, done)

	live := newLiveBuild(rec)
	select {
	case e.submissions <- live:
	case <-e.stopCh:
		e.dropWaiter(id, done)
		return nil, errors.New("engine stopped")
	case <-ctx.Done():
		// The queued record stays durable; it will be replayed on the
		// next Start.
		e.dropWaiter(id, done)
		return nil, ctx.Err()
	}
	e.deps.Recorder.SetQueueDepth(len(e.submissions))

	slog.Debug("Build enqueued", "build_id", id, "repo_url", req.RepoURL, "commit", req.Commit)
	return &PendingBuild{ID: id, Done: done}, nil
}

// GetOutput resolves a build's output across the in-flight registry and
// the durable store. The exit code is nil while the build is queued or
// running. Unknown ids return UnknownBuildError.
func (e *Engine) GetOutput(ctx context.Context, id uint64) (string, *int, error) {
	if live, ok := e.registry.Get(id); ok {
		return live.Sink.Current(), live.exitCode(), nil
	}

	if _, err := e.deps.Store.GetQueued(ctx, id); err == nil {
		return fmt.Sprintf("Build queued, ID is %d", id), nil, nil
	} else if !errors.Is(err, ErrNoRecord) {
		return "", nil, err
	}

	rec, err := e.deps.Store.GetResult(ctx, id)
	if err == nil {
		return rec.Output, rec.ExitCode, nil
	}
	if errors.Is(err, ErrNoRecord) {
		return "", nil, &UnknownBuildError{ID: id}
	}
	return "", nil, err
}

// Active returns a snapshot of the in-flight builds.
func (e *Engine) Active() []*LiveBuild {
	return e.registry.Snapshot()
}

// consume is the single task pulling the combined recovery+intake sequence
// into the bounded operation queue.
func (e *Engine) consume(ctx context.Context, recovered []*BuildRecord) {
	defer e.consumerWG.Done()

	for _, rec := range recovered {
		// A crash between result-write and queued-invalidate leaves both
		// keys; the result is authoritative, so drop the stale entry
		// instead of re-running.
		if _, err := e.deps.Store.GetResult(ctx, rec.ID); err == nil {
			slog.Info("Dropping stale queued record, result exists", "build_id", rec.ID)
			if err := e.deps.Store.InvalidateQueued(ctx, rec.ID); err != nil {
				slog.Warn("Failed to drop stale queued record", "build_id", rec.ID, "err", err)
			}
			continue
		}
		slog.Info("Replaying recovered build", "build_id", rec.ID, "repo_url", rec.RepoURL)
		e.admit(ctx, newLiveBuild(rec))
	}

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case live := <-e.submissions:
			e.deps.Recorder.SetQueueDepth(len(e.submissions))
			e.admit(ctx, live)
		}
	}
}

func (e *Engine) admit(ctx context.Context, live *LiveBuild) {
	err := e.opq.Submit(ctx, defaultPriority, func(ctx context.Context) {
		e.execute(ctx, live)
	})
	if err != nil {
		// Admission only fails when the context ends during shutdown; the
		// queued record survives for the next Start.
		slog.Warn("Build not admitted", "build_id", live.Record.ID, "err", err)
	}
}

func (e *Engine) addWaiter(id uint64, ch chan *BuildRecord) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	e.waiters[id] = append(e.waiters[id], ch)
}

func (e *Engine) dropWaiter(id uint64, ch chan *BuildRecord) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	chans := e.waiters[id]
	for i, c := range chans {
		if c == ch {
			e.waiters[id] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(e.waiters[id]) == 0 {
		delete(e.waiters, id)
	}
}

// complete resolves Enqueue futures and publishes the completion event.
func (e *Engine) complete(ctx context.Context, rec *BuildRecord) {
	e.wmu.Lock()
	chans := e.waiters[rec.ID]
	delete(e.waiters, rec.ID)
	e.wmu.Unlock()

	for _, ch := range chans {
		ch <- rec // buffered; the future holder may read at leisure
	}

	ev := events.BuildCompleted{
		BuildID:  rec.ID,
		RepoURL:  rec.RepoURL,
		Commit:   rec.Commit,
		ExitCode: *rec.ExitCode,
	}
	if err := e.deps.Emitter.EmitBuildCompleted(ctx, ev); err != nil {
		slog.Warn("Failed to emit BuildCompleted event", "build_id", rec.ID, "err", err)
	}
}
