// Package handlers contains the JSON handlers of the integration API.
package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/open-bas/open-bas/internal/sync"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// ManagerSource hands out the process-wide manager and runs reconciliation passes.
// *sync.ManagerHolder implements it.
type ManagerSource interface {
	Get(ctx context.Context) (*sync.Manager, error)
	Reconcile(ctx context.Context) error
}

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Managers ManagerSource
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// RenderError logs err and answers with a generic 500 that carries the request id.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	method, path := "", ""
	if req := c.Request(); req != nil {
		method = req.Method
		if req.URL != nil {
			path = req.URL.Path
		}
	}
	c.Logger().Error("http error",
		"request_id", requestID,
		"method", method,
		"path", path,
		"ip", c.RealIP(),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, ErrorBody{
		Error:     "Internal server error",
		Code:      InternalErrorCode,
		RequestID: requestID,
	})
}

func renderStatus(c *echo.Context, status int, code string) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	return c.JSON(status, ErrorBody{Error: http.StatusText(status), Code: code, RequestID: requestID})
}
