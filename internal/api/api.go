// Package api exposes the tracking service over HTTP: the detection ingest
// endpoint producers post to and the read API for active vehicles, archived
// sessions and camera metadata.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/datastore"
	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/logging"
	"github.com/tphakala/platewatch-go/internal/tracker"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	Settings  *conf.Settings
	Tracker   *tracker.Tracker
	History   datastore.Interface
	logger    *slog.Logger
	startTime time.Time
}

// New creates the API controller and registers its routes on the given Echo
// instance. History may be nil when no durable session output is enabled.
func New(e *echo.Echo, settings *conf.Settings, trk *tracker.Tracker, history datastore.Interface) *Controller {
	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	c := &Controller{
		Echo:      e,
		Settings:  settings,
		Tracker:   trk,
		History:   history,
		logger:    logger,
		startTime: time.Now(),
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())
	c.initRoutes()

	return c
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.POST("/detections", c.PostDetection)

	c.Group.GET("/vehicles", c.GetVehicles)
	c.Group.GET("/vehicles/:plate", c.GetVehicle)
	c.Group.GET("/vehicles/:plate/archive", c.GetVehicleArchive)
	c.Group.GET("/vehicles/:plate/history", c.GetVehicleHistory)

	c.Group.GET("/cameras", c.GetCameras)
	c.Group.GET("/cameras/:id", c.GetCamera)
	c.Group.PUT("/cameras/:id", c.PutCamera)

	c.Group.GET("/health", c.GetHealth)
}

// ErrorResponse is the JSON body of a failed request. The correlation id
// ties the response to the server-side log line.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs the error and writes the JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: uuid.New().String()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.logger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)

	return ctx.JSON(code, resp)
}

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		var ee *errors.EnhancedError
		if errors.As(err, &ee) && ee.Category == errors.CategoryValidation {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}
}

// GetHealth reports service liveness.
func (c *Controller) GetHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(c.startTime).Seconds()),
	})
}
