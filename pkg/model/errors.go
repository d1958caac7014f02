package model

import "fmt"

// ValidationError reports an unusable model field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid model: %s", e.Reason)
	}
	return fmt.Sprintf("invalid model field '%s': %s", e.Field, e.Reason)
}

// ModelNotFoundError indicates a model file does not exist.
type ModelNotFoundError struct {
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model file '%s' not found", e.Path)
}

// OperationNotFoundError indicates an OpenAPI document has no such operation.
type OperationNotFoundError struct {
	OperationID string
	Available   []string
}

func (e *OperationNotFoundError) Error() string {
	if e.OperationID == "" {
		return fmt.Sprintf("an operation id is required; available: %v", e.Available)
	}
	return fmt.Sprintf("operation '%s' not found; available: %v", e.OperationID, e.Available)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
