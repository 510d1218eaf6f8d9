// Package tracker implements the entity tracking core: the lifecycle state
// machine deciding what happened to a plate across camera events, the
// deduplication of oversampled detections and the finalization handoff to
// the session archive.
//
// All state lives in the shared store; the tracker itself is stateless and
// safe for any number of concurrent producers. Consistency comes from the
// store's optimistic watch-then-commit transactions, so detections for
// different plates never contend and concurrent writers for the same plate
// never lose updates.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/eventlog"
	"github.com/tphakala/platewatch-go/internal/events"
	"github.com/tphakala/platewatch-go/internal/logging"
	"github.com/tphakala/platewatch-go/internal/observability/metrics"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

// Tracker is the entity tracking core.
type Tracker struct {
	store       *trackstore.Store
	registry    *CameraRegistry
	eventLog    *eventlog.Logger
	bus         *events.EventBus
	metrics     *metrics.TrackerMetrics
	logger      *slog.Logger
	window      time.Duration
	entryCamera string
	dedupWindow time.Duration
}

// Option configures optional tracker collaborators.
type Option func(*Tracker)

// WithEventLog attaches the transition audit log.
func WithEventLog(l *eventlog.Logger) Option {
	return func(t *Tracker) { t.eventLog = l }
}

// WithEventBus attaches the action event bus the dispatcher consumes from.
func WithEventBus(eb *events.EventBus) Option {
	return func(t *Tracker) { t.bus = eb }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.TrackerMetrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a tracker on top of the given store.
func New(store *trackstore.Store, settings *conf.TrackerSettings, opts ...Option) *Tracker {
	logger := logging.ForService("tracker")
	if logger == nil {
		logger = slog.Default().With("service", "tracker")
	}

	t := &Tracker{
		store:       store,
		registry:    NewCameraRegistry(store),
		logger:      logger,
		window:      settings.Window(),
		entryCamera: settings.EntryCamera,
		dedupWindow: settings.DedupWindow,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Registry returns the camera registry.
func (t *Tracker) Registry() *CameraRegistry {
	return t.registry
}

// IsEntryCamera reports whether the camera is the designated ingress/egress
// point of the tracked area.
func (t *Tracker) IsEntryCamera(cameraID string) bool {
	return cameraID == t.entryCamera
}

// detectOutcome carries the decision of one transaction attempt out of the
// mutation closure. Conflict retries overwrite it, only the committed
// attempt's outcome survives.
type detectOutcome struct {
	result    DetectResult
	oldStatus string
	newStatus string
	reason    string
	record    *trackstore.VehicleRecord
	finalized bool
}

// OnDetect handles one detection event. It normalizes the input, applies the
// state machine transition under an optimistic transaction and emits the
// audit log line and action event for the committed transition.
func (t *Tracker) OnDetect(ctx context.Context, plate, cameraID, timestamp string) (DetectResult, error) {
	started := time.Now()

	plate, ts, err := normalizeDetection(plate, cameraID, timestamp)
	if err != nil {
		t.countError(err)
		return DetectResult{}, err
	}

	var out detectOutcome
	err = t.store.MutateVehicle(ctx, plate, func(rec *trackstore.VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		out = detectOutcome{}
		if rec == nil {
			return t.applyEntry(ctx, &out, plate, cameraID, ts)
		}
		if t.isDuplicate(rec, cameraID, ts) {
			out.result = DetectResult{
				Action: ActionDuplicate,
				Plate:  plate,
				Msg:    "Duplicate detection ignored",
			}
			return nil, nil
		}
		if cameraID == rec.LastSeenCamera {
			return t.applySameCamera(ctx, &out, rec, cameraID, ts)
		}
		return t.applyMovement(ctx, &out, rec, cameraID, ts)
	})
	if err != nil {
		t.countError(err)
		return DetectResult{}, err
	}

	t.commitOutcome(&out, cameraID)
	t.metrics.RecordDetection(string(out.result.Action))
	t.metrics.ObserveDetectionDuration(time.Since(started).Seconds())

	return out.result, nil
}

// isDuplicate applies the frame-rate oversampling guard: a repeat sighting
// by the same camera inside the dedup window is accepted as a no-op.
func (t *Tracker) isDuplicate(rec *trackstore.VehicleRecord, cameraID string, ts time.Time) bool {
	return cameraID == rec.LastSeenCamera && ts.Sub(rec.LastSeenTS) < t.dedupWindow
}

// applyEntry starts a new tracking session.
func (t *Tracker) applyEntry(ctx context.Context, out *detectOutcome, plate, cameraID string, ts time.Time) (func(redis.Pipeliner) error, error) {
	rec := &trackstore.VehicleRecord{
		Plate:          plate,
		SessionID:      uuid.New().String(),
		Status:         trackstore.Status{State: trackstore.StateEntered},
		LastSeenCamera: cameraID,
		LastSeenTS:     ts,
		FirstSeenTS:    ts,
		Detections:     1,
		PathHistory: []trackstore.PathEntry{
			{CameraID: cameraID, TS: ts.UTC().Format(time.RFC3339Nano)},
		},
	}

	out.record = rec
	out.oldStatus = "NONE"
	out.newStatus = string(trackstore.StateEntered)
	out.reason = "ENTRY_SUCCESS"
	out.result = DetectResult{
		Action:   ActionEntry,
		Plate:    plate,
		LastSeen: cameraID,
		Msg:      fmt.Sprintf("Entry recorded. Timer started %s", t.window),
	}

	return trackstore.WriteRecord(ctx, rec, t.window)
}

// applySameCamera handles a repeat sighting at the camera the vehicle was
// last seen by: either the exit condition or a same-camera refresh.
func (t *Tracker) applySameCamera(ctx context.Context, out *detectOutcome, rec *trackstore.VehicleRecord, cameraID string, ts time.Time) (func(redis.Pipeliner) error, error) {
	// Exit condition: re-seen at the designated entry camera with no
	// intermediate movement, within the window.
	if t.IsEntryCamera(cameraID) && len(rec.PathHistory) == 1 && ts.Sub(rec.FirstSeenTS) <= t.window {
		oldStatus := rec.Status.String()
		rec.Status = trackstore.Status{State: trackstore.StateExited}
		rec.LastSeenTS = ts
		rec.Detections++

		out.record = rec
		out.finalized = true
		out.oldStatus = oldStatus
		out.newStatus = string(trackstore.StateExited)
		out.reason = "EXIT_DETECTED"
		out.result = DetectResult{
			Action: ActionExit,
			Plate:  rec.Plate,
			Msg:    "Vehicle exited, removed from active tracking",
		}

		return t.store.FinalizeRecord(ctx, rec, ts)
	}

	oldStatus := rec.Status.String()
	rec.LastSeenTS = ts
	rec.Detections++

	out.record = rec
	out.oldStatus = oldStatus
	out.newStatus = oldStatus
	out.reason = "UPDATE_SAME_CAMERA"
	out.result = DetectResult{
		Action:   ActionUpdateSameCamera,
		Plate:    rec.Plate,
		LastSeen: cameraID,
		Msg:      "Updated same camera detection",
	}

	return trackstore.WriteRecord(ctx, rec, t.window)
}

// applyMovement handles a sighting at a different camera than the last one.
func (t *Tracker) applyMovement(ctx context.Context, out *detectOutcome, rec *trackstore.VehicleRecord, cameraID string, ts time.Time) (func(redis.Pipeliner) error, error) {
	oldStatus := rec.Status.String()
	rec.PathHistory = append(rec.PathHistory, trackstore.PathEntry{
		CameraID: cameraID,
		TS:       ts.UTC().Format(time.RFC3339Nano),
	})
	rec.Status = trackstore.Status{State: trackstore.StateMoving}
	rec.LastSeenCamera = cameraID
	rec.LastSeenTS = ts
	rec.Detections++

	out.record = rec
	out.oldStatus = oldStatus
	out.newStatus = string(trackstore.StateMoving)
	out.reason = "MOVED"
	out.result = DetectResult{
		Action:   ActionMoved,
		Plate:    rec.Plate,
		Path:     rec.PathCameras(),
		LastSeen: cameraID,
		Msg:      "Path updated",
	}

	return trackstore.WriteRecord(ctx, rec, t.window)
}

// OnTimerExpire finalizes the session of a plate whose tracking window
// elapsed. It is idempotent: a plate without an active record is a no-op,
// and a timer re-armed by a concurrent detection supersedes the expiry.
// Both the push and the poll expiry paths call this entry point.
func (t *Tracker) OnTimerExpire(ctx context.Context, plate string) (ExpireResult, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		err := errors.Newf("plate cannot be empty").
			Component("tracker").
			Category(errors.CategoryValidation).
			Build()
		t.countError(err)
		return ExpireResult{}, err
	}

	var out detectOutcome
	var result ExpireResult
	err := t.store.MutateVehicle(ctx, plate, func(rec *trackstore.VehicleRecord, timerTTL time.Duration) (func(redis.Pipeliner) error, error) {
		out = detectOutcome{}
		if rec == nil {
			// Already archived or exited
			result = ExpireResult{
				Action: ActionNoAction,
				Plate:  plate,
				Msg:    "Vehicle not found",
			}
			return nil, nil
		}
		if timerTTL > 0 {
			// A concurrent detection re-armed the window
			result = ExpireResult{
				Action: ActionNoAction,
				Plate:  plate,
				Msg:    "Timer re-armed, expiry superseded",
			}
			return nil, nil
		}

		oldStatus := rec.Status.String()
		if rec.Status.State == trackstore.StateEntered && len(rec.PathHistory) == 1 {
			rec.Status = trackstore.Status{State: trackstore.StateParked, Near: rec.LastSeenCamera}
		} else {
			rec.Status = trackstore.Status{State: trackstore.StateParked}
		}

		now := time.Now().UTC()
		rec.LastSeenTS = now

		out.record = rec
		out.finalized = true
		out.oldStatus = oldStatus
		out.newStatus = rec.Status.String()
		out.reason = "TIMER_EXPIRED"
		out.result = DetectResult{Action: ActionParked, Plate: plate}
		result = ExpireResult{
			Action:         ActionParked,
			Plate:          plate,
			LastSeenCamera: rec.LastSeenCamera,
			FinalStatus:    rec.Status.String(),
			Msg:            fmt.Sprintf("Vehicle marked as %s", rec.Status),
		}

		return t.store.FinalizeRecord(ctx, rec, now)
	})
	if err != nil {
		t.countError(err)
		return ExpireResult{}, err
	}

	if out.record != nil {
		t.commitOutcome(&out, out.record.LastSeenCamera)
	}
	t.metrics.RecordExpiry(string(result.Action))

	return result, nil
}

// commitOutcome performs the post-commit side effects of a transition: the
// audit log line and the action event. Neither participates in the
// consistency contract.
func (t *Tracker) commitOutcome(out *detectOutcome, cameraID string) {
	if out.record == nil {
		// DUPLICATE and NO_ACTION outcomes mutate nothing and stay silent
		return
	}

	if t.eventLog != nil {
		t.eventLog.Log(eventlog.Event{
			TS:         out.record.LastSeenTS,
			Plate:      out.record.Plate,
			CameraID:   cameraID,
			OldStatus:  out.oldStatus,
			NewStatus:  out.newStatus,
			Reason:     out.reason,
			Detections: out.record.Detections,
			PathLen:    len(out.record.PathHistory),
		})
	}

	t.publishAction(out)
}

// publishAction forwards dispatcher-relevant actions to the event bus.
// Same-camera refreshes stay internal.
func (t *Tracker) publishAction(out *detectOutcome) {
	if t.bus == nil {
		return
	}

	action := out.result.Action
	if action == ActionUpdateSameCamera || action == ActionDuplicate || action == ActionNoAction {
		return
	}

	finalStatus := ""
	if out.finalized {
		finalStatus = out.newStatus
	}

	ev, err := events.NewTrackingEvent(
		out.record.Plate,
		string(action),
		out.record.LastSeenCamera,
		out.record.PathCameras(),
		finalStatus,
	)
	if err != nil {
		t.logger.Warn("failed to build tracking event", "plate", out.record.Plate, "error", err)
		return
	}
	t.bus.TryPublish(ev)
}

// GetVehicle reads the current state of a plate. Unknown plates return
// errors.ErrVehicleNotFound, a normal negative result.
func (t *Tracker) GetVehicle(ctx context.Context, plate string) (*trackstore.VehicleRecord, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, errors.Newf("plate cannot be empty").
			Component("tracker").
			Category(errors.CategoryValidation).
			Build()
	}
	return t.store.GetVehicle(ctx, plate)
}

// GetArchived reads the archived session of a plate.
func (t *Tracker) GetArchived(ctx context.Context, plate string) (*trackstore.ArchiveEntry, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, errors.Newf("plate cannot be empty").
			Component("tracker").
			Category(errors.CategoryValidation).
			Build()
	}
	return t.store.GetArchived(ctx, plate)
}

// GetActiveVehicles lists all actively tracked vehicles.
func (t *Tracker) GetActiveVehicles(ctx context.Context) ([]*trackstore.VehicleRecord, error) {
	records, err := t.store.GetActiveVehicles(ctx)
	if err != nil {
		t.countError(err)
		return nil, err
	}
	t.metrics.SetActiveVehicles(len(records))
	return records, nil
}

// countError records the error category in metrics. Conflict exhaustion is
// counted separately because it signals sustained contention.
func (t *Tracker) countError(err error) {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		t.metrics.RecordError(ee.GetCategory())
		if ee.Category == errors.CategoryConflict {
			t.metrics.RecordTxConflict()
		}
		return
	}
	t.metrics.RecordError(string(errors.CategoryGeneric))
}
