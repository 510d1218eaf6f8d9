// Package trackstore implements the shared state store access layer on top
// of Redis: active vehicle records with TTL markers, the write-once session
// archive and camera metadata. All record mutations go through an optimistic
// watch-then-commit transaction so concurrent producers never lose updates.
package trackstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/logging"
)

// retryBackoffStep is the base of the bounded backoff between optimistic
// transaction attempts: attempt n sleeps n*retryBackoffStep.
const retryBackoffStep = 10 * time.Millisecond

// Store provides access to the shared state store.
type Store struct {
	rdb              *redis.Client
	logger           *slog.Logger
	db               int
	maxTxRetries     int
	archiveRetention time.Duration
}

// New connects to Redis using the given settings and verifies the
// connection with a ping.
func New(settings *conf.Settings) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         settings.Redis.Addr(),
		DB:           settings.Redis.DB,
		Password:     settings.Redis.Password,
		DialTimeout:  settings.Redis.ConnectTimeout,
		ReadTimeout:  settings.Redis.OperationTimeout,
		WriteTimeout: settings.Redis.OperationTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), settings.Redis.ConnectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.New(err).
			Component("trackstore").
			Category(errors.CategoryRedisConnection).
			Context("addr", settings.Redis.Addr()).
			Build()
	}

	logger := logging.ForService("trackstore")
	if logger == nil {
		logger = slog.Default().With("service", "trackstore")
	}

	return &Store{
		rdb:              rdb,
		logger:           logger,
		db:               settings.Redis.DB,
		maxTxRetries:     settings.Tracker.MaxTxRetries,
		archiveRetention: settings.Tracker.ArchiveRetention,
	}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests running
// against miniredis.
func NewWithClient(rdb *redis.Client, maxTxRetries int, archiveRetention time.Duration) *Store {
	logger := logging.ForService("trackstore")
	if logger == nil {
		logger = slog.Default().With("service", "trackstore")
	}
	return &Store{
		rdb:              rdb,
		logger:           logger,
		maxTxRetries:     maxTxRetries,
		archiveRetention: archiveRetention,
	}
}

// Client exposes the underlying Redis client for the expiry subsystem's
// keyspace notification subscription.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

// DB returns the Redis database number, needed to build the keyspace
// notification channel name.
func (s *Store) DB() int {
	return s.db
}

// ArchiveRetention returns the archive retention configured for this store.
func (s *Store) ArchiveRetention() time.Duration {
	return s.archiveRetention
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// EnableKeyExpiryNotifications configures Redis to publish expired-key
// events. Failure is not fatal, the poll fallback covers expiry then.
func (s *Store) EnableKeyExpiryNotifications(ctx context.Context) error {
	if err := s.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		return errors.New(err).
			Component("trackstore").
			Category(errors.CategoryRedisConnection).
			Build()
	}
	return nil
}

// mapRedisErr translates a Redis client error into the error taxonomy:
// timeouts and connectivity stay distinct from logic errors so callers can
// decide whether a retry of the whole operation makes sense.
func mapRedisErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}

	category := errors.CategoryRedisConnection
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		category = errors.CategoryTimeout
	}
	return errors.New(err).
		Component("trackstore").
		Category(category).
		Context("op", op).
		Build()
}

// Mutation computes the commit for one optimistic transaction attempt. It
// receives the current record, nil when the plate has no active record, and
// the live TTL of the plate's timer marker (negative when the marker is
// gone). Returning a nil commit function makes the attempt a read-only
// no-op.
type Mutation func(rec *VehicleRecord, timerTTL time.Duration) (func(pipe redis.Pipeliner) error, error)

// MutateVehicle runs fn inside a WATCH on the plate's record and timer keys
// and commits atomically only if neither changed since the read. Conflicts
// retry with bounded backoff; after the cap the operation fails with a
// retryable conflict error and the store is left unchanged.
func (s *Store) MutateVehicle(ctx context.Context, plate string, fn Mutation) error {
	vehicleKey := VehicleKey(plate)
	timerKey := TimerKey(plate)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, vehicleKey).Result()
		if err != nil {
			return err
		}
		rec, err := recordFromFields(plate, fields)
		if err != nil {
			return err
		}

		timerTTL, err := tx.PTTL(ctx, timerKey).Result()
		if err != nil {
			return err
		}

		commit, err := fn(rec, timerTTL)
		if err != nil {
			return err
		}
		if commit == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, commit)
		return err
	}

	for attempt := 0; attempt < s.maxTxRetries; attempt++ {
		err := s.rdb.Watch(ctx, txf, vehicleKey, timerKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("optimistic transaction conflict, retrying",
				"plate", plate,
				"attempt", attempt+1,
			)
			select {
			case <-time.After(time.Duration(attempt+1) * retryBackoffStep):
			case <-ctx.Done():
				return mapRedisErr(ctx.Err(), "mutate")
			}
			continue
		}
		return mapRedisErr(err, "mutate")
	}

	return errors.New(errors.ErrTxConflictExhausted).
		Component("trackstore").
		Category(errors.CategoryConflict).
		Context("plate", plate).
		Context("attempts", s.maxTxRetries).
		Build()
}

// WriteRecord returns the pipeline commands that persist a record and re-arm
// its TTL marker to the given window. Composed into Mutation commits.
func WriteRecord(ctx context.Context, rec *VehicleRecord, window time.Duration) (func(pipe redis.Pipeliner) error, error) {
	fields, err := recordToFields(rec)
	if err != nil {
		return nil, err
	}
	return func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, VehicleKey(rec.Plate), fields)
		pipe.Set(ctx, TimerKey(rec.Plate), "1", window)
		return nil
	}, nil
}

// FinalizeRecord returns the pipeline commands that archive a finalized
// record and remove its active keys, all in the same atomic commit.
func (s *Store) FinalizeRecord(ctx context.Context, rec *VehicleRecord, archivedAt time.Time) (func(pipe redis.Pipeliner) error, error) {
	fields, err := recordToFields(rec)
	if err != nil {
		return nil, err
	}
	fields[fieldArchivedTS] = archivedAt.UTC().Format(time.RFC3339Nano)

	archiveKey := ArchiveKey(rec.Plate)
	return func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, archiveKey, fields)
		pipe.Expire(ctx, archiveKey, s.archiveRetention)
		pipe.Del(ctx, VehicleKey(rec.Plate))
		pipe.Del(ctx, TimerKey(rec.Plate))
		return nil
	}, nil
}

// GetVehicle reads the active record of a plate together with the remaining
// timer TTL. Returns ErrVehicleNotFound when the plate is not tracked.
func (s *Store) GetVehicle(ctx context.Context, plate string) (*VehicleRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, VehicleKey(plate)).Result()
	if err != nil {
		return nil, mapRedisErr(err, "get-vehicle")
	}
	rec, err := recordFromFields(plate, fields)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New(errors.ErrVehicleNotFound).
			Component("trackstore").
			Category(errors.CategoryNotFound).
			Context("plate", plate).
			Build()
	}

	ttl, err := s.rdb.TTL(ctx, TimerKey(plate)).Result()
	if err != nil {
		return nil, mapRedisErr(err, "get-vehicle")
	}
	if ttl > 0 {
		rec.TimerRemaining = ttl
	}

	return rec, nil
}

// GetActiveVehicles scans all active records. Timer markers share the key
// prefix and are skipped.
func (s *Store) GetActiveVehicles(ctx context.Context) ([]*VehicleRecord, error) {
	var records []*VehicleRecord

	iter := s.rdb.Scan(ctx, 0, vehicleKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		plate, ok := PlateFromVehicleKey(iter.Val())
		if !ok {
			continue
		}
		rec, err := s.GetVehicle(ctx, plate)
		if err != nil {
			if errors.IsNotFound(err) {
				// Expired between scan and read
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, mapRedisErr(err, "scan-vehicles")
	}

	return records, nil
}

// ActivePlates scans the plates that currently have an active record.
func (s *Store) ActivePlates(ctx context.Context) ([]string, error) {
	var plates []string

	iter := s.rdb.Scan(ctx, 0, vehicleKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if plate, ok := PlateFromVehicleKey(iter.Val()); ok {
			plates = append(plates, plate)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, mapRedisErr(err, "scan-plates")
	}

	return plates, nil
}

// TimerTTL returns the remaining TTL of a plate's timer marker. A negative
// duration means the marker does not exist.
func (s *Store) TimerTTL(ctx context.Context, plate string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, TimerKey(plate)).Result()
	if err != nil {
		return 0, mapRedisErr(err, "timer-ttl")
	}
	return ttl, nil
}

// GetArchived reads the archived session of a plate. Returns
// ErrVehicleNotFound when no archive entry exists or it already expired.
func (s *Store) GetArchived(ctx context.Context, plate string) (*ArchiveEntry, error) {
	fields, err := s.rdb.HGetAll(ctx, ArchiveKey(plate)).Result()
	if err != nil {
		return nil, mapRedisErr(err, "get-archive")
	}
	rec, err := recordFromFields(plate, fields)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New(errors.ErrVehicleNotFound).
			Component("trackstore").
			Category(errors.CategoryNotFound).
			Context("plate", plate).
			Build()
	}

	entry := &ArchiveEntry{VehicleRecord: *rec}
	if v := fields[fieldArchivedTS]; v != "" {
		if entry.ArchivedTS, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, corruptFieldErr(plate, fieldArchivedTS, err)
		}
	}

	return entry, nil
}
