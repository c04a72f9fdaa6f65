package buildscript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/paulcbetts/peasant/internal/outstream"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCapturesMergedOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell script")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "build.sh", "#!/bin/sh\necho to stdout\necho to stderr 1>&2\nexit 0\n")

	sink := outstream.NewAggregator()
	code, err := NewExecRunner().Run(context.Background(), dir, script, sink)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	out := sink.Current()
	if !strings.Contains(out, "to stdout\n") || !strings.Contains(out, "to stderr\n") {
		t.Fatalf("missing stream output: %q", out)
	}
}

func TestRunReportsChildExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell script")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "build.sh", "#!/bin/sh\necho boom\nexit 3\n")

	sink := outstream.NewAggregator()
	code, err := NewExecRunner().Run(context.Background(), dir, script, sink)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if code != 3 {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunUsesWorkdir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell script")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "build.sh", "#!/bin/sh\npwd\n")

	sink := outstream.NewAggregator()
	if _, err := NewExecRunner().Run(context.Background(), dir, script, sink); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(sink.Current(), filepath.Base(dir)) {
		t.Fatalf("expected workdir in output, got %q", sink.Current())
	}
}

func TestRunMissingScriptIsLaunchError(t *testing.T) {
	sink := outstream.NewAggregator()
	_, err := NewExecRunner().Run(context.Background(), t.TempDir(), "/nonexistent/build.sh", sink)
	var launch *LaunchError
	if !errors.As(err, &launch) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
}
