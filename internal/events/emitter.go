// Package events publishes build lifecycle events for external observers.
package events

import "context"

// BuildStarted describes an admitted build.
type BuildStarted struct {
	EventID string `json:"event_id"`
	BuildID uint64 `json:"build_id"`
	RepoURL string `json:"repo_url"`
	Commit  string `json:"commit"`
}

// BuildCompleted describes a terminal build outcome.
type BuildCompleted struct {
	EventID  string `json:"event_id"`
	BuildID  uint64 `json:"build_id"`
	RepoURL  string `json:"repo_url"`
	Commit   string `json:"commit"`
	ExitCode int    `json:"exit_code"`
}

// Emitter abstracts event emission for build lifecycle events. This allows
// the engine to emit events without depending on a transport.
type Emitter interface {
	EmitBuildStarted(ctx context.Context, ev BuildStarted) error
	EmitBuildCompleted(ctx context.Context, ev BuildCompleted) error
}

// NoopEmitter is an Emitter that does nothing (default when events not configured).
type NoopEmitter struct{}

func (NoopEmitter) EmitBuildStarted(context.Context, BuildStarted) error     { return nil }
func (NoopEmitter) EmitBuildCompleted(context.Context, BuildCompleted) error { return nil }
