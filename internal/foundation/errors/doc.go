// Package errors provides the classified error primitives used across stepbuilder.
//
// Every failure the engine reports falls into one category:
//   - config: cyclic dependencies, duplicate environment variables, bad references
//   - missing_input: a tracked-file glob resolved to no files
//   - dependency: a required or base step failed
//   - execution: a step script exited non-zero
//   - transport: a docker daemon or remote host could not be reached or copied to/from
//
// None of them are retried; the CLI adapter maps each category to an exit code.
//
// Example usage:
//
//	err := errors.ExecutionError(cause, "step script failed").
//		WithContext("step_id", id).
//		Build()
package errors
