package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/platewatch-go/internal/trackstore"
)

// CameraRequest is the payload for registering or updating a camera.
type CameraRequest struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Name      string  `json:"name"`
}

// PutCamera registers or replaces camera metadata.
func (c *Controller) PutCamera(ctx echo.Context) error {
	var req CameraRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid camera payload", http.StatusBadRequest)
	}

	meta := &trackstore.CameraMetadata{
		CameraID:  ctx.Param("id"),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Name:      req.Name,
	}
	if err := c.Tracker.Registry().Set(ctx.Request().Context(), meta); err != nil {
		return c.HandleError(ctx, err, "failed to store camera metadata", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, meta)
}

// GetCamera returns the metadata of one camera.
func (c *Controller) GetCamera(ctx echo.Context) error {
	meta, err := c.Tracker.Registry().Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return c.HandleError(ctx, err, "camera lookup failed", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, meta)
}

// GetCameras lists all registered cameras.
func (c *Controller) GetCameras(ctx echo.Context) error {
	cameras, err := c.Tracker.Registry().List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to list cameras", statusFor(err))
	}
	if cameras == nil {
		cameras = []*trackstore.CameraMetadata{}
	}
	return ctx.JSON(http.StatusOK, cameras)
}
