// Package workspace manages the stepbuilder work directory, supporting both
// ephemeral (timestamped) and persistent (fixed-path) modes.
//
// A work directory holds three trees keyed by step id:
//
//	step_output/<id>         the step's output, or a symlink into step_cache
//	step_cache/<id>          the cache entry for the step
//	step_isolated_root/<id>  the copy of the step's tracked files it runs in
//
// Persistent mode is the default so cache entries survive between runs.
// Ephemeral mode creates stepbuilder-<timestamp> under a base directory and
// removes it on Cleanup.
package workspace
