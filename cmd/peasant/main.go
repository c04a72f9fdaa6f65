package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/paulcbetts/peasant/internal/blobcache"
	"github.com/paulcbetts/peasant/internal/buildqueue"
	"github.com/paulcbetts/peasant/internal/buildscript"
	"github.com/paulcbetts/peasant/internal/config"
	"github.com/paulcbetts/peasant/internal/events"
	"github.com/paulcbetts/peasant/internal/forge"
	"github.com/paulcbetts/peasant/internal/git"
	"github.com/paulcbetts/peasant/internal/metrics"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"peasant.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
	} `cmd:"" help:"Run the build queue daemon, replaying any persisted queued builds"`

	Run struct {
		Repo      string `arg:"" help:"Repository clone URL"`
		Commit    string `arg:"" help:"Commit SHA to build"`
		Script    string `arg:"" help:"Build script URL"`
		Workspace string `short:"w" help:"Workspace root override"`
	} `cmd:"" help:"Enqueue a single build, wait for it, and exit with its exit code"`
}

func main() {
	// Best effort; the process environment wins over .env entries.
	_ = godotenv.Load()

	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	switch kctx.Command() {
	case "serve":
		if err := runServe(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "run <repo> <commit> <script>":
		code, err := runOnce(cfg)
		if err != nil {
			slog.Error("Build failed to run", "error", err)
			os.Exit(1)
		}
		os.Exit(code)
	default:
		kctx.FatalIfErrorf(fmt.Errorf("unknown command %s", kctx.Command()))
	}
}

func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Shutting down", "signal", sig.String())

	eng.Stop(ctx)
	return nil
}

func runOnce(cfg *config.Config) (int, error) {
	ctx := context.Background()

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return 1, err
	}
	defer cleanup()

	if err := eng.Start(ctx); err != nil {
		return 1, err
	}
	defer eng.Stop(ctx)

	root := CLI.Run.Workspace
	if root == "" {
		root = cfg.WorkspaceRoot
	}
	pending, err := eng.Enqueue(ctx, buildqueue.BuildRequest{
		RepoURL:        CLI.Run.Repo,
		Commit:         CLI.Run.Commit,
		BuildScriptURL: CLI.Run.Script,
		WorkspaceRoot:  root,
	})
	if err != nil {
		return 1, err
	}
	slog.Info("Build enqueued", "build_id", pending.ID)

	rec := <-pending.Done
	fmt.Print(rec.Output)
	return *rec.ExitCode, nil
}

// buildEngine wires the engine from configuration. The returned cleanup
// closes the cache and the event emitter.
func buildEngine(cfg *config.Config) (*buildqueue.Engine, func(), error) {
	var cache blobcache.Cache
	var err error
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		cache, err = blobcache.NewSQLiteCache(cfg.Cache.Path)
	default:
		cache, err = blobcache.NewFSCache(cfg.Cache.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	var emitter events.Emitter = events.NoopEmitter{}
	var natsEmitter *events.NATSEmitter
	if cfg.NATS.Enabled {
		natsEmitter, err = events.NewNATSEmitter(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			cache.Close()
			return nil, nil, err
		}
		emitter = natsEmitter
	}

	eng := buildqueue.NewEngine(
		buildqueue.Config{
			MaxConcurrency: cfg.MaxConcurrency,
			Account:        cfg.Account,
		},
		buildqueue.Deps{
			Store:       buildqueue.NewRecordStore(cache),
			Provisioner: git.NewClient(),
			Forge:       forge.NewGitHubClient(cfg.Forge.APIURL, cfg.Forge.Token),
			Fetcher:     buildscript.NewHTTPFetcher(),
			Runner:      buildscript.NewExecRunner(),
			Emitter:     emitter,
			Recorder:    metrics.NewPrometheusRecorder(prom.NewRegistry()),
		},
	)

	cleanup := func() {
		if natsEmitter != nil {
			natsEmitter.Close()
		}
		if err := cache.Close(); err != nil {
			slog.Warn("Failed to close cache", "err", err)
		}
	}
	return eng, cleanup, nil
}
