package translator

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every error caused by invalid client input.
var ErrValidation = errors.New("validation error")

// InvalidRoleError reports a message whose role is not system, user or assistant.
type InvalidRoleError struct {
	Index int
	Role  string
}

func (e *InvalidRoleError) Error() string {
	return fmt.Sprintf("invalid role %q at messages[%d]: must be one of system, user, assistant", e.Role, e.Index)
}

func (e *InvalidRoleError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamShapeError reports a 200 response from Gemini that does not match
// the expected schema.
type UpstreamShapeError struct {
	Field  string
	Reason string
}

func (e *UpstreamShapeError) Error() string {
	if e.Field == "" {
		return "unexpected upstream response: " + e.Reason
	}
	return fmt.Sprintf("unexpected upstream response: %s: %s", e.Field, e.Reason)
}

// UpstreamEmptyResponseError reports a chat response without any candidate.
type UpstreamEmptyResponseError struct {
	BlockReason string
}

func (e *UpstreamEmptyResponseError) Error() string {
	if e.BlockReason != "" {
		return "upstream returned no candidates (prompt blocked: " + e.BlockReason + ")"
	}
	return "upstream returned no candidates"
}

func shapeErr(field, format string, args ...any) error {
	return &UpstreamShapeError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
