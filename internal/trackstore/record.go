package trackstore

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tphakala/platewatch-go/internal/errors"
)

// State is the lifecycle state of an actively tracked vehicle.
type State string

const (
	StateEntered State = "ENTERED" // single sighting at the entry to the session
	StateMoving  State = "MOVING"  // sighted at more than one camera
	StateExited  State = "EXITED"  // re-seen at the entry camera, session closed
	StateParked  State = "PARKED"  // tracking window elapsed without further sighting
)

// Status is the lifecycle status of a vehicle. Near carries the camera id
// when a vehicle parked after a single sighting, so "parked near camera X"
// stays a typed value instead of an interpolated string.
type Status struct {
	State State
	Near  string
}

// String renders the status for logs, API responses and the archive.
func (s Status) String() string {
	if s.State == StateParked && s.Near != "" {
		return "PARKED_NEAR_" + s.Near
	}
	return string(s.State)
}

// ParseStatus reconstructs a Status from its persisted fields.
func ParseStatus(state, near string) Status {
	return Status{State: State(state), Near: near}
}

// PathEntry is one sighting in a session's camera path.
type PathEntry struct {
	CameraID string `json:"camera_id"`
	TS       string `json:"ts"`
}

// VehicleRecord is the active tracking record of one plate.
//
// Invariants: PathHistory has at least one entry, consecutive entries never
// repeat a camera, LastSeenCamera equals the last path entry's camera and
// Detections >= len(PathHistory).
type VehicleRecord struct {
	Plate          string
	SessionID      string
	Status         Status
	LastSeenCamera string
	LastSeenTS     time.Time
	FirstSeenTS    time.Time
	Detections     int
	PathHistory    []PathEntry

	// TimerRemaining is filled on reads from the marker TTL, zero when the
	// marker already lapsed. It is not a persisted field.
	TimerRemaining time.Duration
}

// PathCameras returns the ordered camera ids of the session path.
func (r *VehicleRecord) PathCameras() []string {
	cameras := make([]string, len(r.PathHistory))
	for i, p := range r.PathHistory {
		cameras[i] = p.CameraID
	}
	return cameras
}

// Hash field names, kept stable as they are the persisted wire format.
const (
	fieldPlate          = "plate"
	fieldSessionID      = "session_id"
	fieldStatus         = "status"
	fieldParkedNear     = "parked_near"
	fieldLastSeenCamera = "last_seen_camera"
	fieldLastSeenTS     = "last_seen_ts"
	fieldFirstSeenTS    = "first_seen_ts"
	fieldDetections     = "detections"
	fieldPathHistory    = "path_history"
	fieldArchivedTS     = "archived_ts"
)

// recordToFields flattens a record into state store hash fields.
func recordToFields(rec *VehicleRecord) (map[string]any, error) {
	pathJSON, err := json.Marshal(rec.PathHistory)
	if err != nil {
		return nil, errors.New(err).
			Component("trackstore").
			Category(errors.CategoryState).
			Context("plate", rec.Plate).
			Build()
	}

	return map[string]any{
		fieldPlate:          rec.Plate,
		fieldSessionID:      rec.SessionID,
		fieldStatus:         string(rec.Status.State),
		fieldParkedNear:     rec.Status.Near,
		fieldLastSeenCamera: rec.LastSeenCamera,
		fieldLastSeenTS:     rec.LastSeenTS.UTC().Format(time.RFC3339Nano),
		fieldFirstSeenTS:    rec.FirstSeenTS.UTC().Format(time.RFC3339Nano),
		fieldDetections:     strconv.Itoa(rec.Detections),
		fieldPathHistory:    string(pathJSON),
	}, nil
}

// recordFromFields rebuilds a record from state store hash fields. An empty
// field map means the record does not exist and yields nil.
func recordFromFields(plate string, fields map[string]string) (*VehicleRecord, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	rec := &VehicleRecord{
		Plate:          plate,
		SessionID:      fields[fieldSessionID],
		Status:         ParseStatus(fields[fieldStatus], fields[fieldParkedNear]),
		LastSeenCamera: fields[fieldLastSeenCamera],
	}

	var err error
	if v := fields[fieldLastSeenTS]; v != "" {
		if rec.LastSeenTS, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, corruptFieldErr(plate, fieldLastSeenTS, err)
		}
	}
	if v := fields[fieldFirstSeenTS]; v != "" {
		if rec.FirstSeenTS, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, corruptFieldErr(plate, fieldFirstSeenTS, err)
		}
	}
	if v := fields[fieldDetections]; v != "" {
		if rec.Detections, err = strconv.Atoi(v); err != nil {
			return nil, corruptFieldErr(plate, fieldDetections, err)
		}
	}
	if v := fields[fieldPathHistory]; v != "" {
		if err = json.Unmarshal([]byte(v), &rec.PathHistory); err != nil {
			return nil, corruptFieldErr(plate, fieldPathHistory, err)
		}
	}

	return rec, nil
}

func corruptFieldErr(plate, field string, err error) error {
	return errors.New(err).
		Component("trackstore").
		Category(errors.CategoryState).
		Context("plate", plate).
		Context("field", field).
		Build()
}

// ArchiveEntry is the immutable snapshot of a finalized session.
type ArchiveEntry struct {
	VehicleRecord
	ArchivedTS time.Time
}
