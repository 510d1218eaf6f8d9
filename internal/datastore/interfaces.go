// Package datastore mirrors finalized tracking sessions into a relational
// database. The state store archive is bounded by its retention TTL, the
// session history here is what outlives it.
package datastore

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/tphakala/platewatch-go/internal/conf"
	"github.com/tphakala/platewatch-go/internal/errors"
	"github.com/tphakala/platewatch-go/internal/logging"
)

// Interface is the session history contract.
type Interface interface {
	Open() error
	Close() error
	SaveSession(session *VehicleSession) error
	GetSession(sessionID string) (*VehicleSession, error)
	SessionsForPlate(plate string, limit int) ([]VehicleSession, error)
	RecentSessions(limit int) ([]VehicleSession, error)
}

// DataStore implements the session history on top of GORM, shared by the
// SQLite and MySQL backends.
type DataStore struct {
	DB     *gorm.DB
	logger *slog.Logger
}

// New creates the session history store selected by the output settings, or
// nil when no durable output is enabled.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled:
		return nil, errors.Newf("only one database output can be enabled at a time").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, nil
	}
}

func (ds *DataStore) log() *slog.Logger {
	if ds.logger == nil {
		ds.logger = logging.ForService("datastore")
		if ds.logger == nil {
			ds.logger = slog.Default().With("service", "datastore")
		}
	}
	return ds.logger
}

// SaveSession upserts one finalized session keyed by the session id, so the
// consumer can safely replay an event.
func (ds *DataStore) SaveSession(session *VehicleSession) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	err := ds.DB.Where("session_id = ?", session.SessionID).
		Assign(*session).
		FirstOrCreate(&VehicleSession{}).Error
	if err != nil {
		ds.log().Error("failed to save session", "plate", session.Plate, "error", err)
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("plate", session.Plate).
			Build()
	}
	return nil
}

// GetSession reads one session by its id.
func (ds *DataStore) GetSession(sessionID string) (*VehicleSession, error) {
	var session VehicleSession
	err := ds.DB.Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrVehicleNotFound).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("session_id", sessionID).
				Build()
		}
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return &session, nil
}

// SessionsForPlate lists a plate's sessions, newest first.
func (ds *DataStore) SessionsForPlate(plate string, limit int) ([]VehicleSession, error) {
	var sessions []VehicleSession
	err := ds.DB.Where("plate = ?", plate).
		Order("archived_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("plate", plate).
			Build()
	}
	return sessions, nil
}

// RecentSessions lists the most recently finalized sessions.
func (ds *DataStore) RecentSessions(limit int) ([]VehicleSession, error) {
	var sessions []VehicleSession
	err := ds.DB.Order("archived_at DESC").Limit(limit).Find(&sessions).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return sessions, nil
}

// Close releases the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return sqlDB.Close()
}
