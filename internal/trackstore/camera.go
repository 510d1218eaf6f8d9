package trackstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/tphakala/platewatch-go/internal/errors"
)

// CameraMetadata describes one camera of the tracked area.
type CameraMetadata struct {
	CameraID  string  `json:"camera_id"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Name      string  `json:"name"`
}

const (
	cameraFieldID   = "camera_id"
	cameraFieldLat  = "lat"
	cameraFieldLon  = "lon"
	cameraFieldName = "name"
)

// SetCameraMetadata stores or replaces the metadata of a camera.
func (s *Store) SetCameraMetadata(ctx context.Context, meta *CameraMetadata) error {
	if meta.CameraID == "" {
		return errors.Newf("camera id cannot be empty").
			Component("trackstore").
			Category(errors.CategoryValidation).
			Build()
	}

	err := s.rdb.HSet(ctx, CameraKey(meta.CameraID), map[string]any{
		cameraFieldID:   meta.CameraID,
		cameraFieldLat:  strconv.FormatFloat(meta.Latitude, 'f', -1, 64),
		cameraFieldLon:  strconv.FormatFloat(meta.Longitude, 'f', -1, 64),
		cameraFieldName: meta.Name,
	}).Err()
	if err != nil {
		return mapRedisErr(err, "set-camera")
	}
	return nil
}

// GetCameraMetadata reads the metadata of a camera. Returns ErrCameraNotFound
// when the camera is unknown.
func (s *Store) GetCameraMetadata(ctx context.Context, cameraID string) (*CameraMetadata, error) {
	fields, err := s.rdb.HGetAll(ctx, CameraKey(cameraID)).Result()
	if err != nil {
		return nil, mapRedisErr(err, "get-camera")
	}
	if len(fields) == 0 {
		return nil, errors.New(errors.ErrCameraNotFound).
			Component("trackstore").
			Category(errors.CategoryNotFound).
			Context("camera_id", cameraID).
			Build()
	}

	return cameraFromFields(cameraID, fields)
}

// ListCameras scans all camera metadata entries.
func (s *Store) ListCameras(ctx context.Context) ([]*CameraMetadata, error) {
	var cameras []*CameraMetadata

	iter := s.rdb.Scan(ctx, 0, cameraKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		cameraID := strings.TrimPrefix(iter.Val(), cameraKeyPrefix)
		meta, err := s.GetCameraMetadata(ctx, cameraID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		cameras = append(cameras, meta)
	}
	if err := iter.Err(); err != nil {
		return nil, mapRedisErr(err, "scan-cameras")
	}

	return cameras, nil
}

func cameraFromFields(cameraID string, fields map[string]string) (*CameraMetadata, error) {
	meta := &CameraMetadata{
		CameraID: cameraID,
		Name:     fields[cameraFieldName],
	}

	var err error
	if v := fields[cameraFieldLat]; v != "" {
		if meta.Latitude, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, corruptFieldErr(cameraID, cameraFieldLat, err)
		}
	}
	if v := fields[cameraFieldLon]; v != "" {
		if meta.Longitude, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, corruptFieldErr(cameraID, cameraFieldLon, err)
		}
	}

	return meta, nil
}
