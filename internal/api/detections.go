package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// DetectionRequest is the ingest payload producers post for every plate
// reading.
type DetectionRequest struct {
	Plate     string `json:"plate"`
	CameraID  string `json:"camera_id"`
	Timestamp string `json:"timestamp"`
}

// PostDetection ingests one detection and returns the resulting tracking
// action. Malformed detections are rejected without touching tracking state.
func (c *Controller) PostDetection(ctx echo.Context) error {
	var req DetectionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid detection payload", http.StatusBadRequest)
	}

	result, err := c.Tracker.OnDetect(ctx.Request().Context(), req.Plate, req.CameraID, req.Timestamp)
	if err != nil {
		return c.HandleError(ctx, err, "detection processing failed", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, result)
}
