// Package events provides an asynchronous event bus for decoupling the
// tracker core from notification and persistence consumers, preventing
// blocking operations on the detection path.
package events

import (
	"time"
)

// TrackingEvent represents a lifecycle action emitted by the tracker core
// that can be processed asynchronously. The tracker only publishes; consumers
// never write back into tracker state.
type TrackingEvent interface {
	// GetPlate returns the normalized plate of the tracked vehicle
	GetPlate() string

	// GetAction returns the action name (ENTRY, MOVED, EXIT, PARKED, ...)
	GetAction() string

	// GetCamera returns the camera id the action was observed at
	GetCamera() string

	// GetPath returns the ordered camera path of the session so far
	GetPath() []string

	// GetFinalStatus returns the terminal status for finalizing actions,
	// empty for non-terminal actions
	GetFinalStatus() string

	// GetTimestamp returns when the action occurred
	GetTimestamp() time.Time

	// GetMetadata returns additional context data
	GetMetadata() map[string]any
}

// Consumer represents a consumer that processes tracking events
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single tracking event
	ProcessEvent(event TrackingEvent) error

	// ProcessBatch processes multiple events at once (for efficiency)
	ProcessBatch(events []TrackingEvent) error

	// SupportsBatching returns true if this consumer supports batch processing
	SupportsBatching() bool
}

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
