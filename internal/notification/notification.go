// Package notification turns tracking actions into operator-facing messages.
// It consumes from the event bus, so a slow or failing dispatch never blocks
// the detection path.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tphakala/platewatch-go/internal/events"
	"github.com/tphakala/platewatch-go/internal/logging"
	"github.com/tphakala/platewatch-go/internal/tracker"
)

const lookupTimeout = 2 * time.Second

// Dispatcher formats and emits notifications for tracking actions. Camera
// ids are resolved to display names through the registry when metadata
// exists.
type Dispatcher struct {
	registry *tracker.CameraRegistry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher resolving camera names via the registry.
func NewDispatcher(registry *tracker.CameraRegistry) *Dispatcher {
	logger := logging.ForService("notification")
	if logger == nil {
		logger = slog.Default().With("service", "notification")
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Name implements events.Consumer.
func (d *Dispatcher) Name() string {
	return "notification-dispatcher"
}

// ProcessEvent implements events.Consumer.
func (d *Dispatcher) ProcessEvent(event events.TrackingEvent) error {
	d.logger.Info(d.message(event),
		"plate", event.GetPlate(),
		"action", event.GetAction(),
		"camera", event.GetCamera(),
	)
	return nil
}

// ProcessBatch implements events.Consumer.
func (d *Dispatcher) ProcessBatch(evs []events.TrackingEvent) error {
	for _, ev := range evs {
		if err := d.ProcessEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// SupportsBatching implements events.Consumer. Messages are emitted one by
// one, ordering matters more than throughput here.
func (d *Dispatcher) SupportsBatching() bool {
	return false
}

// message renders the operator-facing line for one action.
func (d *Dispatcher) message(event events.TrackingEvent) string {
	plate := event.GetPlate()
	camera := d.cameraName(event.GetCamera())

	switch tracker.Action(event.GetAction()) {
	case tracker.ActionEntry:
		return fmt.Sprintf("Vehicle %s entered at %s", plate, camera)
	case tracker.ActionMoved:
		return fmt.Sprintf("Vehicle %s moved to %s (path: %s)",
			plate, camera, strings.Join(event.GetPath(), " > "))
	case tracker.ActionExit:
		return fmt.Sprintf("Vehicle %s exited via %s", plate, camera)
	case tracker.ActionParked:
		if status := event.GetFinalStatus(); status != "" {
			return fmt.Sprintf("Vehicle %s is %s", plate, status)
		}
		return fmt.Sprintf("Vehicle %s parked, last seen at %s", plate, camera)
	default:
		return fmt.Sprintf("Vehicle %s: %s at %s", plate, event.GetAction(), camera)
	}
}

// cameraName resolves a camera id to its display name, falling back to the
// raw id when no metadata is registered.
func (d *Dispatcher) cameraName(cameraID string) string {
	if cameraID == "" || d.registry == nil {
		return cameraID
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	meta, err := d.registry.Get(ctx, cameraID)
	if err != nil || meta.Name == "" {
		return cameraID
	}
	return meta.Name
}
