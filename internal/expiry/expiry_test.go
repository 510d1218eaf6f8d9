package expiry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/tracker"
	"github.com/tphakala/platewatch-go/internal/trackstore"
)

func TestMain(m *testing.M) {
	// go-cache janitors stop via finalizer, not Close
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func newTestFixture(t *testing.T) (*trackstore.Store, *tracker.Tracker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	settings := &conf.TrackerSettings{
		WindowSeconds:    30,
		EntryCamera:      "camera1",
		DedupWindow:      500 * time.Millisecond,
		ArchiveRetention: 12 * time.Hour,
		MaxTxRetries:     5,
	}
	store := trackstore.NewWithClient(client, settings.MaxTxRetries, settings.ArchiveRetention)
	return store, tracker.New(store, settings), mr
}

func TestPollSweepFinalizesLapsedSession(t *testing.T) {
	t.Parallel()

	store, tr, mr := newTestFixture(t)
	ctx := context.Background()

	_, err := tr.OnDetect(ctx, "MH20EE7598", "camera1", time.Now().UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	svc := New(store, tr, &conf.ExpirySettings{PollInterval: 10 * time.Millisecond})
	svc.Start(ctx)
	t.Cleanup(svc.Stop)

	require.Eventually(t, func() bool {
		_, err := store.GetArchived(ctx, "MH20EE7598")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	entry, err := store.GetArchived(ctx, "MH20EE7598")
	require.NoError(t, err)
	assert.Equal(t, "PARKED_NEAR_camera1", entry.Status.String())

	_, err = store.GetVehicle(ctx, "MH20EE7598")
	assert.True(t, errors.IsNotFound(err))
}

func TestPollSweepLeavesLiveTimersAlone(t *testing.T) {
	t.Parallel()

	store, tr, _ := newTestFixture(t)
	ctx := context.Background()

	_, err := tr.OnDetect(ctx, "KA01AB1234", "camera1", time.Now().UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)

	svc := New(store, tr, &conf.ExpirySettings{PollInterval: 10 * time.Millisecond})
	svc.Start(ctx)
	t.Cleanup(svc.Stop)

	time.Sleep(100 * time.Millisecond)

	rec, err := store.GetVehicle(ctx, "KA01AB1234")
	require.NoError(t, err)
	assert.Equal(t, trackstore.StateEntered, rec.Status.State)
}

func TestPushListenerFinalizesOnNotification(t *testing.T) {
	t.Parallel()

	store, tr, mr := newTestFixture(t)
	ctx := context.Background()

	_, err := tr.OnDetect(ctx, "MH20EE7598", "camera1", time.Now().UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)

	// Long poll interval so only the push path can finalize in time
	svc := New(store, tr, &conf.ExpirySettings{
		KeyspaceNotifications: true,
		PollInterval:          time.Hour,
	})
	svc.Start(ctx)
	t.Cleanup(svc.Stop)

	// Simulate the server-side expiry: the marker vanishes, then the
	// notification is delivered.
	timerKey := trackstore.TimerKey("MH20EE7598")
	mr.Del(timerKey)

	require.Eventually(t, func() bool {
		return store.Client().Publish(ctx, "__keyevent@0__:expired", timerKey).Err() == nil &&
			archived(ctx, store, "MH20EE7598")
	}, 2*time.Second, 20*time.Millisecond)

	entry, err := store.GetArchived(ctx, "MH20EE7598")
	require.NoError(t, err)
	assert.Equal(t, trackstore.StateParked, entry.Status.State)
}

func TestHandleExpiredKeyIgnoresForeignKeys(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestFixture(t)
	ctx := context.Background()

	calls := 0
	svc := New(store, finalizerFunc(func(context.Context, string) (tracker.ExpireResult, error) {
		calls++
		return tracker.ExpireResult{}, nil
	}), &conf.ExpirySettings{PollInterval: time.Hour})

	svc.handleExpiredKey(ctx, "vehicle_archive:MH20EE7598")
	svc.handleExpiredKey(ctx, "camera:camera1")
	svc.handleExpiredKey(ctx, "car:MH20EE7598")
	assert.Zero(t, calls)

	svc.handleExpiredKey(ctx, "car:MH20EE7598:timer")
	assert.Equal(t, 1, calls)
}

func archived(ctx context.Context, store *trackstore.Store, plate string) bool {
	_, err := store.GetArchived(ctx, plate)
	return err == nil
}

type finalizerFunc func(ctx context.Context, plate string) (tracker.ExpireResult, error)

func (f finalizerFunc) OnTimerExpire(ctx context.Context, plate string) (tracker.ExpireResult, error) {
	return f(ctx, plate)
}
