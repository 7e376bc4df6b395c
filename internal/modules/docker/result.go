package docker

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInstalled = errors.New("runtime already installed")
	ErrNotInstalled     = errors.New("runtime not installed")
	ErrUnsupportedOS    = errors.New("unsupported os")
)

// ErrorCode структурированный код неуспешной операции.
type ErrorCode string

const (
	CodeAlreadyInstalled ErrorCode = "already_installed"
	CodeNotInstalled     ErrorCode = "not_installed"
	CodeUnsupportedOS    ErrorCode = "unsupported_os"
	CodeCommandFailed    ErrorCode = "command_failed"
)

// Result итог изменяющей операции.
type Result struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Code    ErrorCode `json:"error_code,omitempty"`
}

// Operation изменяющая операция менеджера.
type Operation string

const (
	OpInstall   Operation = "install"
	OpUpdate    Operation = "update"
	OpUninstall Operation = "uninstall"
)

var successMessages = map[Operation]string{
	OpInstall:   "Docker installed successfully",
	OpUpdate:    "Docker updated successfully",
	OpUninstall: "Docker uninstalled successfully",
}

// resultFor переводит ошибку операции в Result.
func resultFor(op Operation, err error) Result {
	switch {
	case err == nil:
		return Result{Success: true, Message: successMessages[op]}
	case errors.Is(err, ErrAlreadyInstalled):
		return Result{Message: "Docker is already installed", Code: CodeAlreadyInstalled}
	case errors.Is(err, ErrNotInstalled):
		return Result{Message: "Docker not installed", Code: CodeNotInstalled}
	case errors.Is(err, ErrUnsupportedOS):
		var osErr *unsupportedOSError
		name := "unknown"
		if errors.As(err, &osErr) {
			name = osErr.os
		}
		return Result{Message: "Unsupported OS: " + name, Code: CodeUnsupportedOS}
	default:
		return Result{Message: fmt.Sprintf("Failed to %s Docker: %v", op, err), Code: CodeCommandFailed}
	}
}

type unsupportedOSError struct {
	os string
}

func (e *unsupportedOSError) Error() string { return fmt.Sprintf("%s: %s", ErrUnsupportedOS, e.os) }

func (e *unsupportedOSError) Unwrap() error { return ErrUnsupportedOS }
