package loop

import "fmt"

// Validation error codes.
const (
	CodeBadItemSize   = "BAD_ITEM_SIZE"
	CodeBadLength     = "BAD_LENGTH"
	CodeCountMismatch = "COUNT_MISMATCH"
	CodeBadOption     = "BAD_OPTION"
)

// ValidationError reports input that violates the triangle-soup contract
// or an out-of-range option. Nothing is attempted on invalid input.
type ValidationError struct {
	Code      string
	Message   string
	Attribute string // attribute name, empty for option errors
}

func (e *ValidationError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("%s: %s (attribute: %s)", e.Code, e.Message, e.Attribute)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// DimensionMismatchError is raised when vertex arithmetic combines tuples of
// different lengths. It signals a programming error in channel separation.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vertex dimension mismatch: want %d scalars, got %d", e.Want, e.Got)
}

func invalid(code, attr, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Attribute: attr,
	}
}
