package datastore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/events"
	"github.com/tphakala/platewatch-go/internal/logging"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

const archiveReadTimeout = 5 * time.Second

// SessionConsumer mirrors finalizing actions from the event bus into the
// session history. Non-final actions pass through untouched.
type SessionConsumer struct {
	history Interface
	archive *trackstore.Store
	logger  *slog.Logger
}

// NewSessionConsumer creates the history mirror consumer. The archive store
// supplies the full session snapshot the event itself does not carry.
func NewSessionConsumer(history Interface, archive *trackstore.Store) *SessionConsumer {
	logger := logging.ForService("datastore")
	if logger == nil {
		logger = slog.Default().With("service", "datastore")
	}
	return &SessionConsumer{history: history, archive: archive, logger: logger}
}

// Name implements events.Consumer.
func (c *SessionConsumer) Name() string {
	return "session-history"
}

// ProcessEvent implements events.Consumer.
func (c *SessionConsumer) ProcessEvent(event events.TrackingEvent) error {
	action := event.GetAction()
	if action != "EXIT" && action != "PARKED" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), archiveReadTimeout)
	defer cancel()

	entry, err := c.archive.GetArchived(ctx, event.GetPlate())
	if err != nil {
		if errors.IsNotFound(err) {
			// Archive already aged out, persist what the event carries
			return c.saveFromEvent(event)
		}
		return err
	}

	return c.saveFromArchive(entry)
}

// ProcessBatch implements events.Consumer.
func (c *SessionConsumer) ProcessBatch(evs []events.TrackingEvent) error {
	for _, ev := range evs {
		if err := c.ProcessEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// SupportsBatching implements events.Consumer.
func (c *SessionConsumer) SupportsBatching() bool {
	return true
}

func (c *SessionConsumer) saveFromArchive(entry *trackstore.ArchiveEntry) error {
	pathJSON, err := json.Marshal(entry.PathHistory)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryState).
			Context("plate", entry.Plate).
			Build()
	}

	entryCamera := ""
	if len(entry.PathHistory) > 0 {
		entryCamera = entry.PathHistory[0].CameraID
	}

	session := &VehicleSession{
		SessionID:      entry.SessionID,
		Plate:          entry.Plate,
		FinalStatus:    entry.Status.String(),
		EntryCamera:    entryCamera,
		LastSeenCamera: entry.LastSeenCamera,
		FirstSeenAt:    entry.FirstSeenTS,
		LastSeenAt:     entry.LastSeenTS,
		ArchivedAt:     entry.ArchivedTS,
		Detections:     entry.Detections,
		PathLength:     len(entry.PathHistory),
		PathJSON:       string(pathJSON),
	}

	if err := c.history.SaveSession(session); err != nil {
		c.logger.Error("failed to mirror session", "plate", entry.Plate, "error", err)
		return err
	}
	return nil
}

// saveFromEvent is the degraded path when the archive snapshot is gone: the
// event carries no session id, so the row is keyed by plate and time.
func (c *SessionConsumer) saveFromEvent(event events.TrackingEvent) error {
	path := event.GetPath()
	pathJSON, _ := json.Marshal(path)

	entryCamera := ""
	if len(path) > 0 {
		entryCamera = path[0]
	}

	session := &VehicleSession{
		SessionID:      event.GetPlate() + "@" + event.GetTimestamp().UTC().Format(time.RFC3339),
		Plate:          event.GetPlate(),
		FinalStatus:    event.GetFinalStatus(),
		EntryCamera:    entryCamera,
		LastSeenCamera: event.GetCamera(),
		ArchivedAt:     event.GetTimestamp(),
		PathLength:     len(path),
		PathJSON:       string(pathJSON),
	}
	return c.history.SaveSession(session)
}
