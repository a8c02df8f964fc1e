// Package mcp implements the Model Context Protocol server for
// regsearch. It exposes the retrieval pipeline to AI clients as tools
// and publishes regulation documents and telemetry as resources.
package mcp

import (
	"context"
	"errors"
	"fmt"

	regerrors "github.com/ohmbase/regsearch/internal/errors"
)

// Custom MCP error codes for regsearch.
const (
	// ErrCodeIndexUnavailable indicates a search store could not be opened.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeUpstreamFailed indicates an upstream service (embedder,
	// scoring oracle) failed and the pipeline could not degrade.
	ErrCodeUpstreamFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

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

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var pe *regerrors.PipelineError
	if errors.As(err, &pe) {
		return mapPipelineError(pe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// mapPipelineError maps structured pipeline errors by category.
func mapPipelineError(pe *regerrors.PipelineError) *MCPError {
	switch pe.Category {
	case regerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: pe.Message}
	case regerrors.CategoryStorage:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: pe.Message}
	case regerrors.CategoryUpstream:
		return &MCPError{Code: ErrCodeUpstreamFailed, Message: pe.Message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: pe.Message}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}
