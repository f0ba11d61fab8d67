package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes protocol authoring and compilation errors.
type ErrorCode string

const (
	// ErrCodeMembership indicates a component that is not part of the
	// protocol's apparatus.
	ErrCodeMembership ErrorCode = "MEMBERSHIP"

	// ErrCodeEmptyProcedure indicates an Add call with no parameters.
	ErrCodeEmptyProcedure ErrorCode = "EMPTY_PROCEDURE"

	// ErrCodeUnknownAttribute indicates a parameter the component's schema
	// does not declare.
	ErrCodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"

	// ErrCodeDimensionality indicates a quantity parameter whose physical
	// dimension does not match the attribute's declared dimension.
	ErrCodeDimensionality ErrorCode = "DIMENSIONALITY"

	// ErrCodeTypeMismatch indicates a plain parameter of the wrong type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeUnknownSetting indicates a valve setting name missing from the
	// valve's routing mapping.
	ErrCodeUnknownSetting ErrorCode = "UNKNOWN_SETTING"

	// ErrCodeConflictingTimeSpec indicates both stop and duration given.
	ErrCodeConflictingTimeSpec ErrorCode = "CONFLICTING_TIME_SPEC"

	// ErrCodeUnboundedDuration indicates a procedure whose end cannot be
	// determined from stop, duration or the protocol duration.
	ErrCodeUnboundedDuration ErrorCode = "UNBOUNDED_DURATION"

	// ErrCodeMissingTemperature indicates a temperature controller
	// activated without a setpoint.
	ErrCodeMissingTemperature ErrorCode = "MISSING_TEMPERATURE"

	// ErrCodeAmbiguousContinuousProcedure indicates multiple whole-duration
	// procedures on one component.
	ErrCodeAmbiguousContinuousProcedure ErrorCode = "AMBIGUOUS_CONTINUOUS_PROCEDURE"

	// ErrCodeInvertedInterval indicates stop before start.
	ErrCodeInvertedInterval ErrorCode = "INVERTED_INTERVAL"

	// ErrCodeOutOfBounds indicates a start or stop beyond the protocol
	// duration.
	ErrCodeOutOfBounds ErrorCode = "OUT_OF_BOUNDS"

	// ErrCodeAmbiguousStartTime indicates a zero-start successor that
	// cannot anchor a stop inference.
	ErrCodeAmbiguousStartTime ErrorCode = "AMBIGUOUS_START_TIME"

	// ErrCodeUnresolvableDuration indicates duration "auto" with no
	// procedure carrying a stop to infer from.
	ErrCodeUnresolvableDuration ErrorCode = "UNRESOLVABLE_DURATION"

	// ErrCodeBadDuration indicates a protocol duration that is not a
	// quantity of time.
	ErrCodeBadDuration ErrorCode = "BAD_DURATION"
)

// Error is a protocol authoring or compilation error. All errors are
// detected synchronously at the Add or Compile call; nothing is retried
// internally.
type Error struct {
	Code      ErrorCode
	Component string // offending component name, if any
	Message   string
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s (component=%s)", e.Code, e.Message, e.Component)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a protocol error with the given code,
// unwrapping as needed.
func IsCode(err error, code ErrorCode) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// CodeOf extracts the error code from err, or "" if err is not a protocol
// error.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func errf(code ErrorCode, component, format string, args ...any) *Error {
	return &Error{Code: code, Component: component, Message: fmt.Sprintf(format, args...)}
}
