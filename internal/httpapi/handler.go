// Package httpapi exposes a small read-only introspection surface over a
// running system: the current contents of a notification section and how
// far a process application has progressed consuming its upstream.
//
// Grounded in public-api-service's SDKHandler: an Echo handler struct
// holding its dependencies, one Register method mounting routes on a
// shared *echo.Echo, a span per handler via otel.Tracer, and JSON
// responses with explicit status codes rather than echo's default error
// handler — generalized here from "serve cached banner config" to "serve
// read-only recorder state."
package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/arc-self/eventcore/notification"
)

// SectionReader is the read side of a notification.Log — satisfied by
// *notification.Log itself and by *notification/rediscache.Log, so a
// Handler can serve either the live log or its Redis-cached wrapper
// without caring which.
type SectionReader interface {
	Section(ctx context.Context, first, last uint64) (notification.Section, error)
}

// TrackingReader is the read side of a recorder.ProcessRecorder's
// tracking table.
type TrackingReader interface {
	MaxTracking(ctx context.Context, applicationName, upstreamName string, pipelineID int) (uint64, error)
}

// Handler serves the introspection endpoints. Logs and Trackers are keyed
// by application name (the name used to register a notification.Log or a
// process application), so one Handler can serve an entire system.
type Handler struct {
	Logs     map[string]SectionReader
	Trackers map[string]TrackingReader
	Logger   *zap.Logger
}

// New constructs a Handler with empty registries; callers populate Logs
// and Trackers directly before calling Register.
func New(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Logs:     make(map[string]SectionReader),
		Trackers: make(map[string]TrackingReader),
		Logger:   logger,
	}
}

// Register mounts the introspection routes on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/notifications/:application/section", h.GetSection)
	e.GET("/tracking/:application/:upstream", h.GetTracking)
}

// Healthz always returns 200 — liveness, not readiness; a system with a
// broken Postgres connection should still report itself alive so an
// orchestrator doesn't restart-loop it while Postgres recovers.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetSection returns the notifications in [first, last] for the named
// application's log.
//
// @Summary  Read a notification section
// @Produce  json
// @Param    application  path   string  true  "registered application name"
// @Param    first        query  int     true  "first notification id, inclusive"
// @Param    last         query  int     true  "last notification id, inclusive"
// @Success  200  {object}  notification.Section
// @Failure  404  {object}  map[string]string
// @Router   /notifications/{application}/section [get]
func (h *Handler) GetSection(c echo.Context) error {
	ctx, span := otel.Tracer("eventcore/httpapi").Start(c.Request().Context(), "httpapi.GetSection")
	defer span.End()

	app := c.Param("application")
	log, ok := h.Logs[app]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown application"})
	}

	first, err := strconv.ParseUint(c.QueryParam("first"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid first"})
	}
	last, err := strconv.ParseUint(c.QueryParam("last"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid last"})
	}

	section, err := log.Section(ctx, first, last)
	if err != nil {
		h.Logger.Error("httpapi: section read failed", zap.String("application", app), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, section)
}

// GetTracking returns how far application has progressed consuming
// upstream, for a given pipeline_id (query param, defaults to 0).
//
// @Summary  Read a process application's tracking cursor
// @Produce  json
// @Param    application  path   string  true  "process application name"
// @Param    upstream     path   string  true  "upstream name it consumes"
// @Param    pipeline_id  query  int     false "pipeline id, default 0"
// @Success  200  {object}  map[string]uint64
// @Failure  404  {object}  map[string]string
// @Router   /tracking/{application}/{upstream} [get]
func (h *Handler) GetTracking(c echo.Context) error {
	ctx, span := otel.Tracer("eventcore/httpapi").Start(c.Request().Context(), "httpapi.GetTracking")
	defer span.End()

	app := c.Param("application")
	upstream := c.Param("upstream")
	rec, ok := h.Trackers[app]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown application"})
	}

	pipelineID := 0
	if v := c.QueryParam("pipeline_id"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid pipeline_id"})
		}
		pipelineID = parsed
	}

	cursor, err := rec.MaxTracking(ctx, app, upstream, pipelineID)
	if err != nil {
		h.Logger.Error("httpapi: tracking read failed", zap.String("application", app), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, map[string]uint64{"notification_id": cursor})
}
