package datastore

import "time"

// VehicleSession is the durable record of one finalized tracking session.
// The state store archive ages out after its retention window; rows here are
// the long-term history for reporting.
type VehicleSession struct {
	ID             uint      `gorm:"primaryKey"`
	SessionID      string    `gorm:"uniqueIndex;size:36"`
	Plate          string    `gorm:"index:idx_sessions_plate;size:32"`
	FinalStatus    string    `gorm:"size:64"`
	EntryCamera    string    `gorm:"size:64"`
	LastSeenCamera string    `gorm:"size:64"`
	FirstSeenAt    time.Time `gorm:"index:idx_sessions_first_seen"`
	LastSeenAt     time.Time
	ArchivedAt     time.Time
	Detections     int
	PathLength     int
	PathJSON       string `gorm:"type:text"`
}
