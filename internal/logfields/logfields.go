package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyRepo       = "repo_url"
	KeyCommit     = "commit"
	KeyScriptURL  = "script_url"
	KeyStage      = "stage"
	KeyExitCode   = "exit_code"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id uint64) slog.Attr      { return slog.Uint64(KeyBuildID, id) }
func Repo(url string) slog.Attr        { return slog.String(KeyRepo, url) }
func Commit(sha string) slog.Attr      { return slog.String(KeyCommit, sha) }
func ScriptURL(url string) slog.Attr   { return slog.String(KeyScriptURL, url) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func ExitCode(code int) slog.Attr      { return slog.Int(KeyExitCode, code) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
