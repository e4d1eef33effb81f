package errors

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	category ErrorCategory
	severity ErrorSeverity
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified category and message.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.cause = err
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		category: b.category,
		severity: b.severity,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// ConfigError creates a configuration error. Configuration errors are raised before
// any step executes.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

// MissingInputError creates an error for tracked-file globs that matched nothing.
func MissingInputError(message string) *ErrorBuilder {
	return NewError(CategoryMissingInput, message).Fatal()
}

// DependencyError wraps the failure of a required or base step.
func DependencyError(err error, message string) *ErrorBuilder {
	return WrapError(err, CategoryDependency, message).Fatal()
}

// ExecutionError wraps a failed step script.
func ExecutionError(err error, message string) *ErrorBuilder {
	return WrapError(err, CategoryExecution, message).Fatal()
}

// TransportError wraps a failed docker or remote host interaction.
func TransportError(err error, message string) *ErrorBuilder {
	return WrapError(err, CategoryTransport, message).Fatal()
}

// FileSystemError wraps a filesystem failure.
func FileSystemError(err error, message string) *ErrorBuilder {
	return WrapError(err, CategoryFileSystem, message).Fatal()
}

// InternalError wraps a failure that points at a bug rather than at the project.
func InternalError(err error, message string) *ErrorBuilder {
	return WrapError(err, CategoryInternal, message).Fatal()
}
