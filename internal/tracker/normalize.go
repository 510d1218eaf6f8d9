package tracker

import (
	"strings"
	"time"

	"github.com/tphakala/platewatch-go/internal/errors"
)

// NormalizePlate uppercases a plate and strips all whitespace so the same
// physical plate always maps to the same store key regardless of how the
// OCR stage spaced it.
func NormalizePlate(plate string) string {
	fields := strings.Fields(strings.ToUpper(plate))
	return strings.Join(fields, "")
}

// normalizeDetection validates and normalizes one raw detection tuple before
// any store interaction. Malformed input never mutates state.
func normalizeDetection(plate, cameraID, timestamp string) (string, time.Time, error) {
	normalized := NormalizePlate(plate)
	if normalized == "" {
		return "", time.Time{}, errors.Newf("plate cannot be empty").
			Component("tracker").
			Category(errors.CategoryValidation).
			Build()
	}
	if strings.TrimSpace(cameraID) == "" {
		return "", time.Time{}, errors.Newf("camera id cannot be empty").
			Component("tracker").
			Category(errors.CategoryValidation).
			Context("plate", normalized).
			Build()
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return "", time.Time{}, errors.Newf("malformed timestamp %q: %v", timestamp, err).
			Component("tracker").
			Category(errors.CategoryValidation).
			Context("plate", normalized).
			Context("camera_id", cameraID).
			Build()
	}

	return normalized, ts, nil
}
