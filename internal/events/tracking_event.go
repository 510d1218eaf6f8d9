package events

import (
	"fmt"
	"time"

	"github.com/tphakala/platewatch-go/internal/errors"
)

// trackingEventImpl is the concrete implementation of TrackingEvent
type trackingEventImpl struct {
	plate       string
	action      string
	camera      string
	path        []string
	finalStatus string
	timestamp   time.Time
	metadata    map[string]any
}

// NewTrackingEvent creates a new tracking event with input validation
func NewTrackingEvent(plate, action, camera string, path []string, finalStatus string) (TrackingEvent, error) {
	if plate == "" {
		return nil, errors.Newf("NewTrackingEvent: plate cannot be empty").
			Component("events").
			Category(errors.CategoryValidation).
			Build()
	}
	if action == "" {
		return nil, errors.Newf("NewTrackingEvent: action cannot be empty").
			Component("events").
			Category(errors.CategoryValidation).
			Context("plate", plate).
			Build()
	}

	// Copy the path so later tracker mutations cannot leak into consumers.
	var pathCopy []string
	if len(path) > 0 {
		pathCopy = make([]string, len(path))
		copy(pathCopy, path)
	}

	return &trackingEventImpl{
		plate:       plate,
		action:      action,
		camera:      camera,
		path:        pathCopy,
		finalStatus: finalStatus,
		timestamp:   time.Now(),
		metadata:    make(map[string]any),
	}, nil
}

// GetPlate returns the normalized plate of the tracked vehicle
func (e *trackingEventImpl) GetPlate() string {
	return e.plate
}

// GetAction returns the action name
func (e *trackingEventImpl) GetAction() string {
	return e.action
}

// GetCamera returns the camera id the action was observed at
func (e *trackingEventImpl) GetCamera() string {
	return e.camera
}

// GetPath returns the ordered camera path of the session so far
func (e *trackingEventImpl) GetPath() []string {
	return e.path
}

// GetFinalStatus returns the terminal status for finalizing actions
func (e *trackingEventImpl) GetFinalStatus() string {
	return e.finalStatus
}

// GetTimestamp returns when the action occurred
func (e *trackingEventImpl) GetTimestamp() time.Time {
	return e.timestamp
}

// GetMetadata returns additional context data
func (e *trackingEventImpl) GetMetadata() map[string]any {
	return e.metadata
}

// String returns a string representation of the tracking event
func (e *trackingEventImpl) String() string {
	return fmt.Sprintf("Tracking: %s %s at %s, path=%v",
		e.action, e.plate, e.camera, e.path)
}
