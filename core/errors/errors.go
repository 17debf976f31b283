package errors

import "errors"

type Category string

const (
	CategoryInvalidInput       Category = "invalid_input"
	CategorySchemaViolation    Category = "schema_violation"
	CategoryConfigDrift        Category = "config_drift"
	CategoryMalformedDirective Category = "malformed_directive"
	CategoryUnattributedLink   Category = "unattributed_link"
	CategoryMissingLicense     Category = "missing_license"
	CategoryArchiveIntegrity   Category = "archive_integrity"
	CategoryIOFailure          Category = "io_failure"
	CategoryInternalFailure    Category = "internal_failure"
)

type classifiedError struct {
	category Category
	code     string
	hint     string
	cause    error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Category() Category {
	return e.category
}

func (e *classifiedError) Code() string {
	return e.code
}

func (e *classifiedError) Hint() string {
	return e.hint
}

// Wrap classifies a cause. Every error in this subsystem is fatal and never
// retried internally; classification exists so the orchestration layer can
// map failures to exit behavior.
func Wrap(cause error, category Category, code, hint string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category: category,
		code:     code,
		hint:     hint,
		cause:    cause,
	}
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}
