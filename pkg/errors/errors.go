package errors

import (
	"errors"
	"fmt"
)

// Error represents an arca-replay error with context
type Error struct {
	// Code is the error code (e.g., "SNAPSHOT_PARSE_ERROR")
	Code string
	// Message is the human-readable error message
	Message string
	// Cause describes why the error occurred
	Cause string
	// Action suggests what the user should do
	Action string
	// Underlying is the wrapped error
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error
func New(code, message, cause, action string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Action:  action,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code, message, cause, action string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Cause:      cause,
		Action:     action,
		Underlying: err,
	}
}

// Common error codes
const (
	// Run configuration errors
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigParseError = "CONFIG_PARSE_ERROR"
	ErrCodeConfigValidation = "CONFIG_VALIDATION_ERROR"
	ErrCodeConfigPermission = "CONFIG_PERMISSION_ERROR"

	// Topology errors
	ErrCodeTopologyNotFound   = "TOPOLOGY_NOT_FOUND"
	ErrCodeTopologyParseError = "TOPOLOGY_PARSE_ERROR"
	ErrCodeTopologyValidation = "TOPOLOGY_VALIDATION_ERROR"
	ErrCodeUnknownRouter      = "TOPOLOGY_UNKNOWN_ROUTER"

	// Snapshot errors (ParseError family)
	ErrCodeSnapshotNotFound   = "SNAPSHOT_NOT_FOUND"
	ErrCodeSnapshotRead       = "SNAPSHOT_READ_ERROR"
	ErrCodeSnapshotParseError = "SNAPSHOT_PARSE_ERROR"

	// Planning errors
	ErrCodePlanning = "PLANNING_ERROR"

	// Transport errors
	ErrCodeTransportOpen    = "TRANSPORT_OPEN_ERROR"
	ErrCodeTransportSend    = "TRANSPORT_SEND_ERROR"
	ErrCodeTransportTimeout = "TRANSPORT_TIMEOUT"
	ErrCodeTransportClosed  = "TRANSPORT_CLOSED"

	// Journal errors
	ErrCodeJournal = "JOURNAL_ERROR"

	// System errors
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeSystemError      = "SYSTEM_ERROR"
)

// Common error constructors

// ConfigNotFound creates a config not found error
func ConfigNotFound(path string) *Error {
	return New(
		ErrCodeConfigNotFound,
		fmt.Sprintf("Configuration file not found: %s", path),
		"The specified configuration file does not exist",
		"Check the file path or pass a valid one with -config",
	)
}

// ConfigParseError creates a config parse error
func ConfigParseError(path string, err error) *Error {
	return Wrap(
		err,
		ErrCodeConfigParseError,
		fmt.Sprintf("Failed to parse configuration file: %s", path),
		"The configuration file contains invalid YAML or unknown fields",
		"Review the configuration file syntax and fix any errors",
	)
}

// TopologyNotFound creates a topology not found error
func TopologyNotFound(path string) *Error {
	return New(
		ErrCodeTopologyNotFound,
		fmt.Sprintf("Topology file not found: %s", path),
		"The topology file referenced by the configuration does not exist",
		"Check topology.path in the configuration file",
	)
}

// UnknownRouter creates an error for a router that is not part of the topology
func UnknownRouter(name string) *Error {
	return New(
		ErrCodeUnknownRouter,
		fmt.Sprintf("Router not in topology: %s", name),
		"The router name does not match any entry of the topology router list",
		"Check the spelling or add the router to the topology file",
	)
}

// SnapshotNotFound creates an error for a missing required snapshot file
func SnapshotNotFound(router, subsystem, path string) *Error {
	return New(
		ErrCodeSnapshotNotFound,
		fmt.Sprintf("%s snapshot for %s not found: %s", subsystem, router, path),
		"The router's saved configuration was never written or the snapshot directory is wrong",
		"Run 'write file' on the router or fix snapshots.dir in the configuration",
	)
}

// SnapshotReadError creates an error for an unreadable snapshot file
func SnapshotReadError(router, subsystem, path string, err error) *Error {
	return Wrap(
		err,
		ErrCodeSnapshotRead,
		fmt.Sprintf("Failed to read %s snapshot for %s: %s", subsystem, router, path),
		"Permission denied or file is not readable",
		"Check file permissions with 'ls -l'",
	)
}

// ParseError creates a snapshot parse error for one router
func ParseError(router string, err error) *Error {
	return Wrap(
		err,
		ErrCodeSnapshotParseError,
		fmt.Sprintf("Failed to parse snapshots for %s", router),
		"Required snapshot data is missing or malformed",
		"Inspect the router's saved configuration files",
	)
}

// PlanningError creates an error for a plan that cannot be built safely
func PlanningError(target, message string) *Error {
	return New(
		ErrCodePlanning,
		fmt.Sprintf("Cannot build command plan for %s: %s", target, message),
		"Data required to build a well-formed command is missing",
		"Fix the router's saved configuration and rerun",
	)
}

// TransportOpenError creates an error for a session that could not be opened
func TransportOpenError(target string, err error) *Error {
	return Wrap(
		err,
		ErrCodeTransportOpen,
		fmt.Sprintf("Failed to open session to %s", target),
		"The remote shell could not be spawned or reached",
		"Check the launcher command or SSH settings and that the node is running",
	)
}

// TransportSendError creates an error for a failed write to an open session
func TransportSendError(target, line string, err error) *Error {
	return Wrap(
		err,
		ErrCodeTransportSend,
		fmt.Sprintf("Failed to send %q to %s", line, target),
		"The session was closed or the remote shell stopped reading",
		"Check the node is still running and rerun the replay for it",
	)
}

// TransportTimeout creates an error for a send or prompt wait that exceeded its deadline
func TransportTimeout(target, line string, err error) *Error {
	return Wrap(
		err,
		ErrCodeTransportTimeout,
		fmt.Sprintf("Timed out on %q for %s", line, target),
		"The remote shell did not accept input or show the expected prompt in time",
		"Increase transport.command_timeout or check the prompt patterns",
	)
}

// JournalError creates a journal storage error
func JournalError(message string, err error) *Error {
	return Wrap(
		err,
		ErrCodeJournal,
		message,
		"The replay journal database could not be accessed",
		"Check journal.path and its directory permissions",
	)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransport reports whether err carries one of the transport error codes
func IsTransport(err error) bool {
	switch CodeOf(err) {
	case ErrCodeTransportOpen, ErrCodeTransportSend, ErrCodeTransportTimeout, ErrCodeTransportClosed:
		return true
	default:
		return false
	}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
