package trackstore

import "strings"

// Key layout in the shared state store. One hash per active plate, one TTL
// marker per active plate, one archive hash per finalized session and one
// metadata hash per camera.
const (
	vehicleKeyPrefix = "car:"
	timerKeySuffix   = ":timer"
	archiveKeyPrefix = "vehicle_archive:"
	cameraKeyPrefix  = "camera:"
)

// VehicleKey returns the state store key for the active record of a plate.
func VehicleKey(plate string) string {
	return vehicleKeyPrefix + plate
}

// TimerKey returns the TTL marker key for a plate.
func TimerKey(plate string) string {
	return vehicleKeyPrefix + plate + timerKeySuffix
}

// ArchiveKey returns the archive key for a plate's finalized session.
func ArchiveKey(plate string) string {
	return archiveKeyPrefix + plate
}

// CameraKey returns the metadata key for a camera.
func CameraKey(cameraID string) string {
	return cameraKeyPrefix + cameraID
}

// PlateFromTimerKey extracts the plate from a TTL marker key. The second
// return is false when the key is not a timer key.
func PlateFromTimerKey(key string) (string, bool) {
	if !strings.HasPrefix(key, vehicleKeyPrefix) || !strings.HasSuffix(key, timerKeySuffix) {
		return "", false
	}
	plate := strings.TrimSuffix(strings.TrimPrefix(key, vehicleKeyPrefix), timerKeySuffix)
	if plate == "" {
		return "", false
	}
	return plate, true
}

// PlateFromVehicleKey extracts the plate from an active record key, rejecting
// timer keys which share the prefix.
func PlateFromVehicleKey(key string) (string, bool) {
	if !strings.HasPrefix(key, vehicleKeyPrefix) || strings.HasSuffix(key, timerKeySuffix) {
		return "", false
	}
	plate := strings.TrimPrefix(key, vehicleKeyPrefix)
	if plate == "" {
		return "", false
	}
	return plate, true
}
