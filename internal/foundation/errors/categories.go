package errors

// ErrorCategory represents the broad category of an error for classification and exit codes.
type ErrorCategory string

const (
	// CategoryConfig covers invalid declarations: cycles, duplicate environment
	// variables, tracked-file globs outside the source root, unknown references.
	CategoryConfig ErrorCategory = "config"
	// CategoryMissingInput is raised when a tracked-file glob resolves to nothing.
	CategoryMissingInput ErrorCategory = "missing_input"

	// CategoryDependency marks a failure of a required or base step.
	CategoryDependency ErrorCategory = "dependency"
	// CategoryExecution marks a step script (or its container) exiting non-zero.
	CategoryExecution ErrorCategory = "execution"
	// CategoryTransport marks failures talking to a docker daemon or remote host.
	CategoryTransport ErrorCategory = "transport"

	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the run
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}
