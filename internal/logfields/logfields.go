package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStepID       = "step_id"
	KeyStepName     = "step_name"
	KeyRunner       = "runner"
	KeyStage        = "stage"
	KeyPath         = "path"
	KeyArchitecture = "architecture"
	KeyImage        = "image"
	KeyContainer    = "container"
	KeyDockerHost   = "docker_host"
	KeyRunID        = "run_id"
	KeyDurationMS   = "duration_ms"
	KeyCacheHit     = "cache_hit"
	KeyCount        = "count"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func StepID(id string) slog.Attr      { return slog.String(KeyStepID, id) }
func StepName(n string) slog.Attr     { return slog.String(KeyStepName, n) }
func Runner(n string) slog.Attr       { return slog.String(KeyRunner, n) }
func Stage(i int) slog.Attr           { return slog.Int(KeyStage, i) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Architecture(a string) slog.Attr { return slog.String(KeyArchitecture, a) }
func Image(name string) slog.Attr     { return slog.String(KeyImage, name) }
func Container(name string) slog.Attr { return slog.String(KeyContainer, name) }
func DockerHost(h string) slog.Attr   { return slog.String(KeyDockerHost, h) }
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func CacheHit(hit bool) slog.Attr     { return slog.Bool(KeyCacheHit, hit) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
