// Package server exposes the orchestrator's HTTP surface: message intake,
// session inspection and operational probes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/caucehq/cauce/engine/controller"
	"github.com/caucehq/cauce/engine/job"
	"github.com/caucehq/cauce/engine/metrics"
	"github.com/caucehq/cauce/internal/profile"
	"github.com/caucehq/cauce/provider"
	"github.com/caucehq/cauce/store"
)

// Enqueuer accepts inbound messages for asynchronous orchestration.
// *job.Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(tenantID string, msg *provider.Message) error
}

// Server is the HTTP front of the orchestrator.
type Server struct {
	e *echo.Echo

	Profile  *profile.Profile
	Store    store.KV
	Queue    Enqueuer
	Exporter *metrics.Exporter
}

// NewServer wires the echo instance and routes. Exporter may be nil; the
// /metrics route is then absent.
func NewServer(_ context.Context, p *profile.Profile, kv store.KV, queue Enqueuer, exporter *metrics.Exporter) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		e:        e,
		Profile:  p,
		Store:    kv,
		Queue:    queue,
		Exporter: exporter,
	}

	e.GET("/healthz", s.healthz)
	e.GET("/readyz", s.readyz)
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.GetHandler()))
	}

	apiV1 := e.Group("/api/v1")
	apiV1.GET("/version", s.version)
	apiV1.GET("/tenants/:tenant_id/sessions/:wa_id", s.getSession)
	apiV1.POST("/tenants/:tenant_id/messages", s.postMessage)

	return s, nil
}

// Start binds the listener and serves in the background. A bind failure is
// returned synchronously; serve errors after that are logged.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.e.Listener = listener
	go func() {
		if err := s.e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to serve", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.e.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("cauce stopped properly")
}

func (*Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// readyz proves the session store answers before the instance takes traffic.
func (s *Server) readyz(c echo.Context) error {
	if _, err := s.Store.Exists(c.Request().Context(), "readyz:probe"); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) version(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"version": s.Profile.Version,
		"mode":    s.Profile.Mode,
	})
}

// getSession returns the raw session document for one conversation. It reads
// the store directly; the engine is not involved.
func (s *Server) getSession(c echo.Context) error {
	tenantID := c.Param("tenant_id")
	waID := c.Param("wa_id")
	if tenantID == "" || waID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id and wa_id are required")
	}

	raw, ok, err := s.Store.Get(c.Request().Context(), controller.SessionKey(tenantID, waID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read session").SetInternal(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSONBlob(http.StatusOK, []byte(raw))
}

// postMessage accepts one provider message and queues it for orchestration.
// The reply is 202: processing is asynchronous and replies travel through the
// provider, not this response.
func (s *Server) postMessage(c echo.Context) error {
	tenantID := c.Param("tenant_id")
	if tenantID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant_id is required")
	}

	msg := &provider.Message{}
	if err := c.Bind(msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed message").SetInternal(err)
	}
	if msg.ID == "" || msg.From == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id and from are required")
	}

	if err := s.Queue.Enqueue(tenantID, msg); err != nil {
		switch {
		case errors.Is(err, job.ErrQueueFull):
			return echo.NewHTTPError(http.StatusTooManyRequests, "queue full, retry later")
		case errors.Is(err, job.ErrStopped):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue message").SetInternal(err)
		}
	}

	slog.Info("message accepted", "tenant_id", tenantID, "message_id", msg.ID)
	return c.JSON(http.StatusAccepted, map[string]string{
		"status":     "queued",
		"message_id": msg.ID,
	})
}
