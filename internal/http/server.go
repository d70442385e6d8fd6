package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/open-bas/open-bas/internal/http/handlers"
)

const readHeaderTimeout = 5 * time.Second

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h *handlers.Handlers
	e *echo.Echo
}

// NewEchoServer creates the integration API server.
func NewEchoServer(managers handlers.ManagerSource, logger *slog.Logger) (*EchoServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.Logger = logger

	es := &EchoServer{h: &handlers.Handlers{Managers: managers}, e: e}
	e.HTTPErrorHandler = es.httpErrorHandler
	e.Use(requestID)
	es.registerRoutes()
	return es, nil
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)

	api := es.e.Group("/api")
	api.GET("/integrations", es.h.HandleIntegrations)
	api.POST("/integrations/reconcile", es.h.HandleReconcile)
}

// Handler exposes the router, mostly for tests.
func (es *EchoServer) Handler() http.Handler {
	return es.e
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (es *EchoServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           es.e,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		es.e.Logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(echo.HeaderXRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		return next(c)
	}
}

type statusCoder interface {
	StatusCode() int
}

func httpStatusFromError(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}

// httpErrorHandler never echoes error details back to the client.
func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	status := httpStatusFromError(err)
	if status == http.StatusInternalServerError {
		_ = es.h.RenderError(c, err)
		return
	}
	requestID, _ := c.Get(handlers.ContextKeyRequestID).(string)
	_ = c.JSON(status, handlers.ErrorBody{Error: http.StatusText(status), RequestID: requestID})
}
