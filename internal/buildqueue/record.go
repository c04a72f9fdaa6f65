package buildqueue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/paulcbetts/peasant/internal/outstream"
)

// BuildRequest identifies what to build: a repository, a commit, and the
// build script to run against the checked-out tree.
type BuildRequest struct {
	RepoURL        string
	Commit         string
	BuildScriptURL string

	// WorkspaceRoot optionally overrides where the build directory is
	// created. Empty means PEASANT_BUILD_DIR or the OS temp directory.
	WorkspaceRoot string
}

// BuildRecord is the durable description of one build. ExitCode is nil
// while the build is queued or running and set exactly once at completion.
type BuildRecord struct {
	ID             uint64 `json:"id"`
	RepoURL        string `json:"repo_url"`
	Commit         string `json:"commit"`
	BuildScriptURL string `json:"build_script_url"`
	Output         string `json:"output,omitempty"`
	ExitCode       *int   `json:"exit_code,omitempty"`

	// workspaceRoot is the per-build override; never serialized.
	workspaceRoot string
}

// Succeeded reports whether the build completed with exit code zero.
func (r *BuildRecord) Succeeded() bool {
	return r.ExitCode != nil && *r.ExitCode == 0
}

func encodeRecord(r *BuildRecord) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal build record %d: %w", r.ID, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*BuildRecord, error) {
	var r BuildRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal build record: %w", err)
	}
	return &r, nil
}

// LiveBuild pairs a record with its output sink for the span between
// admission and completion.
type LiveBuild struct {
	Record *BuildRecord
	Sink   *outstream.Aggregator

	mu sync.Mutex // guards Record.Output and Record.ExitCode
}

func newLiveBuild(rec *BuildRecord) *LiveBuild {
	return &LiveBuild{Record: rec, Sink: outstream.NewAggregator()}
}

// setResult stores the terminal output and exit code on the record.
func (lb *LiveBuild) setResult(output string, code int) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.Record.Output = output
	lb.Record.ExitCode = &code
}

// exitCode returns a copy of the record's exit code, nil while running.
func (lb *LiveBuild) exitCode() *int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if lb.Record.ExitCode == nil {
		return nil
	}
	code := *lb.Record.ExitCode
	return &code
}
