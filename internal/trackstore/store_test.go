package trackstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/platewatch-go/internal/errors"
)

// newTestStore spins up a miniredis instance and a Store wired to it.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewWithClient(rdb, 5, 12*time.Hour), mr
}

func testRecord(plate string, ts time.Time) *VehicleRecord {
	return &VehicleRecord{
		Plate:          plate,
		SessionID:      "3c5e2a04-1af7-4e8a-9d5f-0b62c07a3f11",
		Status:         Status{State: StateEntered},
		LastSeenCamera: "camera1",
		LastSeenTS:     ts,
		FirstSeenTS:    ts,
		Detections:     1,
		PathHistory:    []PathEntry{{CameraID: "camera1", TS: ts.Format(time.RFC3339Nano)}},
	}
}

func TestKeyHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "car:MH20EE7598", VehicleKey("MH20EE7598"))
	assert.Equal(t, "car:MH20EE7598:timer", TimerKey("MH20EE7598"))
	assert.Equal(t, "vehicle_archive:MH20EE7598", ArchiveKey("MH20EE7598"))
	assert.Equal(t, "camera:camera1", CameraKey("camera1"))

	plate, ok := PlateFromTimerKey("car:MH20EE7598:timer")
	require.True(t, ok)
	assert.Equal(t, "MH20EE7598", plate)

	_, ok = PlateFromTimerKey("car:MH20EE7598")
	assert.False(t, ok)

	plate, ok = PlateFromVehicleKey("car:MH20EE7598")
	require.True(t, ok)
	assert.Equal(t, "MH20EE7598", plate)

	_, ok = PlateFromVehicleKey("car:MH20EE7598:timer")
	assert.False(t, ok)

	_, ok = PlateFromVehicleKey("camera:camera1")
	assert.False(t, ok)
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ENTERED", Status{State: StateEntered}.String())
	assert.Equal(t, "MOVING", Status{State: StateMoving}.String())
	assert.Equal(t, "PARKED", Status{State: StateParked}.String())
	assert.Equal(t, "PARKED_NEAR_camera1", Status{State: StateParked, Near: "camera1"}.String())
}

func TestWriteAndGetVehicle(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := testRecord("MH20EE7598", now)
	err := store.MutateVehicle(ctx, rec.Plate, func(existing *VehicleRecord, timerTTL time.Duration) (func(redis.Pipeliner) error, error) {
		require.Nil(t, existing)
		require.Negative(t, timerTTL)
		return WriteRecord(ctx, rec, 30*time.Second)
	})
	require.NoError(t, err)

	got, err := store.GetVehicle(ctx, "MH20EE7598")
	require.NoError(t, err)
	assert.Equal(t, rec.Plate, got.Plate)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.Equal(t, StateEntered, got.Status.State)
	assert.Equal(t, "camera1", got.LastSeenCamera)
	assert.True(t, got.LastSeenTS.Equal(now))
	assert.True(t, got.FirstSeenTS.Equal(now))
	assert.Equal(t, 1, got.Detections)
	assert.Equal(t, []string{"camera1"}, got.PathCameras())
	assert.Positive(t, got.TimerRemaining)
}

func TestGetVehicleNotFound(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.GetVehicle(context.Background(), "UNKNOWN1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrVehicleNotFound))
	assert.True(t, errors.IsNotFound(err))
}

func TestMutateVehicleSeesExistingRecord(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := testRecord("KA01AB1234", now)
	require.NoError(t, store.MutateVehicle(ctx, rec.Plate, func(_ *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		return WriteRecord(ctx, rec, 30*time.Second)
	}))

	err := store.MutateVehicle(ctx, rec.Plate, func(existing *VehicleRecord, timerTTL time.Duration) (func(redis.Pipeliner) error, error) {
		require.NotNil(t, existing)
		assert.Equal(t, 1, existing.Detections)
		assert.Positive(t, timerTTL)
		return nil, nil
	})
	require.NoError(t, err)
}

func TestMutateVehicleConflictExhaustion(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := testRecord("MH12XX0001", now)
	require.NoError(t, store.MutateVehicle(ctx, rec.Plate, func(_ *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		return WriteRecord(ctx, rec, 30*time.Second)
	}))

	// A competing writer touches the watched key between every read and
	// commit, so each attempt fails and the retry cap is reached.
	attempts := 0
	err := store.MutateVehicle(ctx, rec.Plate, func(existing *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		attempts++
		mr.HSet(VehicleKey(rec.Plate), fieldDetections, "99")
		updated := *existing
		updated.Detections++
		return WriteRecord(ctx, &updated, 30*time.Second)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTxConflictExhausted))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, 5, attempts)
}

func TestFinalizeRecordMovesToArchive(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := testRecord("MH20EE7598", now)
	require.NoError(t, store.MutateVehicle(ctx, rec.Plate, func(_ *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		return WriteRecord(ctx, rec, 30*time.Second)
	}))

	archivedAt := now.Add(30 * time.Second)
	err := store.MutateVehicle(ctx, rec.Plate, func(existing *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		existing.Status = Status{State: StateParked, Near: "camera1"}
		return store.FinalizeRecord(ctx, existing, archivedAt)
	})
	require.NoError(t, err)

	// Active keys are gone
	_, err = store.GetVehicle(ctx, rec.Plate)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, mr.Exists(TimerKey(rec.Plate)))

	// Archive entry exists with its own retention TTL
	entry, err := store.GetArchived(ctx, rec.Plate)
	require.NoError(t, err)
	assert.Equal(t, "PARKED_NEAR_camera1", entry.Status.String())
	assert.True(t, entry.ArchivedTS.Equal(archivedAt))

	archiveTTL := mr.TTL(ArchiveKey(rec.Plate))
	assert.Equal(t, 12*time.Hour, archiveTTL)
}

func TestGetActiveVehiclesSkipsTimerKeys(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, plate := range []string{"AA00AA0001", "BB00BB0002"} {
		rec := testRecord(plate, now)
		require.NoError(t, store.MutateVehicle(ctx, plate, func(_ *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
			return WriteRecord(ctx, rec, 30*time.Second)
		}))
	}

	records, err := store.GetActiveVehicles(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	plates, err := store.ActivePlates(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AA00AA0001", "BB00BB0002"}, plates)
}

func TestTimerTTLAfterExpiry(t *testing.T) {
	t.Parallel()

	store, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := testRecord("CC00CC0003", now)
	require.NoError(t, store.MutateVehicle(ctx, rec.Plate, func(_ *VehicleRecord, _ time.Duration) (func(redis.Pipeliner) error, error) {
		return WriteRecord(ctx, rec, 30*time.Second)
	}))

	ttl, err := store.TimerTTL(ctx, rec.Plate)
	require.NoError(t, err)
	assert.Positive(t, ttl)

	mr.FastForward(31 * time.Second)

	ttl, err = store.TimerTTL(ctx, rec.Plate)
	require.NoError(t, err)
	assert.Negative(t, ttl, "expired marker should report a negative TTL")
}

func TestCameraMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	meta := &CameraMetadata{
		CameraID:  "camera1",
		Latitude:  18.5204,
		Longitude: 73.8567,
		Name:      "Main Gate",
	}
	require.NoError(t, store.SetCameraMetadata(ctx, meta))

	got, err := store.GetCameraMetadata(ctx, "camera1")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	_, err = store.GetCameraMetadata(ctx, "camera9")
	assert.True(t, errors.Is(err, errors.ErrCameraNotFound))

	require.NoError(t, store.SetCameraMetadata(ctx, &CameraMetadata{CameraID: "camera2", Name: "North Lot"}))
	cameras, err := store.ListCameras(ctx)
	require.NoError(t, err)
	assert.Len(t, cameras, 2)
}

func TestSetCameraMetadataValidation(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	err := store.SetCameraMetadata(context.Background(), &CameraMetadata{})
	require.Error(t, err)

	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, errors.CategoryValidation, ee.Category)
}
