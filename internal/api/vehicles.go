package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/platewatch-go/internal/tracker"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

// VehicleResponse is the read model of an actively tracked vehicle.
type VehicleResponse struct {
	Plate          string   `json:"plate"`
	SessionID      string   `json:"session_id"`
	Status         string   `json:"status"`
	LastSeenCamera string   `json:"last_seen_camera"`
	LastSeenTS     string   `json:"last_seen_ts"`
	FirstSeenTS    string   `json:"first_seen_ts"`
	Detections     int      `json:"detections"`
	Path           []string `json:"path"`
	TimerRemaining float64  `json:"timer_remaining_seconds"`
}

// ArchiveResponse is the read model of a finalized session.
type ArchiveResponse struct {
	VehicleResponse
	ArchivedTS string `json:"archived_ts"`
}

func vehicleResponse(rec *trackstore.VehicleRecord) VehicleResponse {
	return VehicleResponse{
		Plate:          rec.Plate,
		SessionID:      rec.SessionID,
		Status:         rec.Status.String(),
		LastSeenCamera: rec.LastSeenCamera,
		LastSeenTS:     rec.LastSeenTS.UTC().Format(time.RFC3339Nano),
		FirstSeenTS:    rec.FirstSeenTS.UTC().Format(time.RFC3339Nano),
		Detections:     rec.Detections,
		Path:           rec.PathCameras(),
		TimerRemaining: rec.TimerRemaining.Seconds(),
	}
}

// GetVehicles lists all actively tracked vehicles.
func (c *Controller) GetVehicles(ctx echo.Context) error {
	records, err := c.Tracker.GetActiveVehicles(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to list active vehicles", statusFor(err))
	}

	vehicles := make([]VehicleResponse, 0, len(records))
	for _, rec := range records {
		vehicles = append(vehicles, vehicleResponse(rec))
	}
	return ctx.JSON(http.StatusOK, vehicles)
}

// GetVehicle returns the active tracking state of one plate.
func (c *Controller) GetVehicle(ctx echo.Context) error {
	rec, err := c.Tracker.GetVehicle(ctx.Request().Context(), ctx.Param("plate"))
	if err != nil {
		return c.HandleError(ctx, err, "vehicle lookup failed", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, vehicleResponse(rec))
}

// GetVehicleArchive returns the archived session of one plate.
func (c *Controller) GetVehicleArchive(ctx echo.Context) error {
	entry, err := c.Tracker.GetArchived(ctx.Request().Context(), ctx.Param("plate"))
	if err != nil {
		return c.HandleError(ctx, err, "archive lookup failed", statusFor(err))
	}

	return ctx.JSON(http.StatusOK, ArchiveResponse{
		VehicleResponse: vehicleResponse(&entry.VehicleRecord),
		ArchivedTS:      entry.ArchivedTS.UTC().Format(time.RFC3339Nano),
	})
}

// GetVehicleHistory lists the durable session history of one plate. Returns
// 404 when no database output is configured.
func (c *Controller) GetVehicleHistory(ctx echo.Context) error {
	if c.History == nil {
		return c.HandleError(ctx, nil, "session history is not enabled", http.StatusNotFound)
	}

	sessions, err := c.History.SessionsForPlate(tracker.NormalizePlate(ctx.Param("plate")), 100)
	if err != nil {
		return c.HandleError(ctx, err, "history lookup failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, sessions)
}
