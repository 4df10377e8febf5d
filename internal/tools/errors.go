package tools

import "errors"

var (
	// ErrToolNameEmpty means a tool was defined without a name.
	ErrToolNameEmpty = errors.New("tool name is empty")

	// ErrToolExecuteNil means a tool was defined without an Execute function.
	ErrToolExecuteNil = errors.New("tool execute function is nil")

	// ErrToolAlreadyRegistered means a tool name collision on Register.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrToolNotFound means the requested tool is not in the registry.
	ErrToolNotFound = errors.New("tool not found")
)
