package buildqueue

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/paulcbetts/peasant/internal/buildscript"
	"github.com/paulcbetts/peasant/internal/events"
	"github.com/paulcbetts/peasant/internal/forge"
	"github.com/paulcbetts/peasant/internal/logfields"
	"github.com/paulcbetts/peasant/internal/metrics"
	"github.com/paulcbetts/peasant/internal/workspace"
)

// Executor stage names for logs and metrics.
const (
	stageValidate  = "validate"
	stageWorkspace = "workspace"
	stageScript    = "script"
	stageRun       = "run"
)

// execute drives one build from admission to its durable result. Every
// execution-path failure is funneled into the recording step; nothing is
// raised to the engine.
func (e *Engine) execute(ctx context.Context, live *LiveBuild) {
	rec := live.Record

	e.registry.Add(live)
	e.deps.Recorder.SetInFlight(e.registry.Len())

	start := time.Now()
	started := events.BuildStarted{BuildID: rec.ID, RepoURL: rec.RepoURL, Commit: rec.Commit}
	if err := e.deps.Emitter.EmitBuildStarted(ctx, started); err != nil {
		slog.Warn("Failed to emit BuildStarted event", "build_id", rec.ID, "err", err)
	}
	slog.Info("Build started", logfields.BuildID(rec.ID), logfields.Repo(rec.RepoURL), logfields.Commit(rec.Commit))

	exitCode, runErr := e.runBuild(ctx, live)

	// Recording: exception text first, then freeze the output, then the
	// two-phase durable transition (result write before queued delete),
	// then registry removal, then completion.
	if runErr != nil {
		live.Sink.Publish(runErr.Error() + "\n")
	}
	live.setResult(live.Sink.Current(), exitCode)

	if err := e.deps.Store.PutResult(ctx, rec); err != nil {
		slog.Error("Failed to persist build result", logfields.BuildID(rec.ID), logfields.Error(err))
	} else if err := e.deps.Store.InvalidateQueued(ctx, rec.ID); err != nil {
		slog.Warn("Failed to drop queued record", logfields.BuildID(rec.ID), logfields.Error(err))
	}

	e.registry.Remove(rec.ID)
	e.deps.Recorder.SetInFlight(e.registry.Len())
	live.Sink.Close()

	e.complete(ctx, rec)

	duration := time.Since(start)
	e.deps.Recorder.ObserveBuildDuration(duration)
	if rec.Succeeded() {
		e.deps.Recorder.IncBuildOutcome(metrics.OutcomeSuccess)
		slog.Info("Build succeeded", logfields.BuildID(rec.ID), logfields.DurationMS(float64(duration.Milliseconds())))
	} else {
		e.deps.Recorder.IncBuildOutcome(metrics.OutcomeFailed)
		slog.Warn("Build failed", logfields.BuildID(rec.ID), logfields.ExitCode(exitCode), logfields.Error(runErr))
	}
}

// runBuild walks the per-build state machine: validate the script URL,
// prepare the workspace, acquire the script, run it. The returned exit
// code is the child's when it ran, and -1 for failures before launch.
func (e *Engine) runBuild(ctx context.Context, live *LiveBuild) (int, error) {
	rec := live.Record

	if err := e.timeStage(stageValidate, func() error {
		return buildscript.Validate(ctx, e.deps.Forge, e.cfg.Account, rec.BuildScriptURL)
	}); err != nil {
		return -1, err
	}

	root := workspace.Root(rec.workspaceRoot)
	dir := workspace.Dir(root, rec.RepoURL)
	if err := e.timeStage(stageWorkspace, func() error {
		if err := workspace.Ensure(dir); err != nil {
			return err
		}
		return e.deps.Provisioner.Prepare(ctx, dir, rec.RepoURL, rec.Commit, e.deps.Forge.Credentials())
	}); err != nil {
		return -1, err
	}

	var scriptPath string
	if err := e.timeStage(stageScript, func() error {
		var err error
		scriptPath, err = e.locateScript(ctx, dir, rec)
		return err
	}); err != nil {
		return -1, err
	}

	runStart := time.Now()
	code, err := e.deps.Runner.Run(ctx, dir, scriptPath, live.Sink)
	e.deps.Recorder.ObserveStageDuration(stageRun, time.Since(runStart))
	if err != nil {
		return -1, err
	}
	if code != 0 {
		return code, &NonZeroExitError{Code: code}
	}
	return 0, nil
}

// locateScript resolves the script to a local path. A script living in the
// build's own repository is already in the checkout; anything else is
// downloaded in its raw form pinned to the build's commit.
func (e *Engine) locateScript(ctx context.Context, dir string, rec *BuildRecord) (string, error) {
	if forge.SameRepo(rec.BuildScriptURL, rec.RepoURL) {
		return buildscript.LocalPath(dir, rec.BuildScriptURL)
	}

	raw := buildscript.RawURL(rec.BuildScriptURL, rec.Commit)
	dest := filepath.Join(dir, buildscript.Basename(rec.BuildScriptURL))
	if err := e.deps.Fetcher.Fetch(ctx, raw, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (e *Engine) timeStage(stage string, f func() error) error {
	start := time.Now()
	err := f()
	e.deps.Recorder.ObserveStageDuration(stage, time.Since(start))
	return err
}
