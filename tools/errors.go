package tools

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTool          = errors.New("duplicate tool")
	ErrUnknownTool            = errors.New("unknown tool")
	ErrRegistrySealed         = errors.New("tool registry is sealed")
	ErrMalformedHandlerOutput = errors.New("malformed handler output")
)

// DuplicateToolError is returned when a name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Name)
}

func (e *DuplicateToolError) Unwrap() error { return ErrDuplicateTool }

// UnknownToolError is returned when a lookup misses.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tool not found: %s", e.Name)
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// MalformedHandlerOutputError reports a handler that broke the result
// contract. It is a programming error, never shown to clients as-is.
type MalformedHandlerOutputError struct {
	Tool   string
	Reason string
}

func (e *MalformedHandlerOutputError) Error() string {
	return fmt.Sprintf("tool %q returned malformed output: %s", e.Tool, e.Reason)
}

func (e *MalformedHandlerOutputError) Unwrap() error { return ErrMalformedHandlerOutput }

// HandlerError wraps a failure raised inside a tool handler.
type HandlerError struct {
	Tool string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsUnknownTool reports whether err is a lookup miss.
func IsUnknownTool(err error) bool {
	return errors.Is(err, ErrUnknownTool)
}
