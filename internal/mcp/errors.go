// Package mcp serves the plant index over the Model Context Protocol so AI
// clients can search plants and read their properties.
package mcp

import (
	"context"
	"errors"
	"fmt"

	amerrors "github.com/Aman-CERP/plantsearch/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexUnavailable indicates the index is missing or unreadable.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeStoreUnavailable indicates the plant database cannot be read.
	ErrCodeStoreUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeNotFound indicates a requested plant does not exist.
	ErrCodeNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid tool arguments.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// MapError converts internal errors to MCP errors. It returns nil for a nil
// error.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	pe, ok := amerrors.As(err)
	if !ok {
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}

	message := pe.Message
	if pe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", pe.Message, pe.Suggestion)
	}

	switch {
	case pe.Code == amerrors.ErrCodeNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: message}
	case pe.Code == amerrors.ErrCodeCanceled:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case pe.Category == amerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case pe.Category == amerrors.CategoryIndex:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case pe.Category == amerrors.CategoryStore:
		return &MCPError{Code: ErrCodeStoreUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
