package tracker

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/platewatch-go/internal/trackstore"
)

// Camera metadata changes only via explicit admin updates, a short cache
// keeps notification formatting off the store's hot path.
const (
	cameraCacheTTL     = 5 * time.Minute
	cameraCacheCleanup = 10 * time.Minute
)

// CameraRegistry provides camera metadata lookups with a read-through cache
// in front of the state store.
type CameraRegistry struct {
	store *trackstore.Store
	cache *cache.Cache
}

// NewCameraRegistry creates a registry backed by the given store.
func NewCameraRegistry(store *trackstore.Store) *CameraRegistry {
	return &CameraRegistry{
		store: store,
		cache: cache.New(cameraCacheTTL, cameraCacheCleanup),
	}
}

// Set stores or replaces camera metadata and refreshes the cache.
func (r *CameraRegistry) Set(ctx context.Context, meta *trackstore.CameraMetadata) error {
	if err := r.store.SetCameraMetadata(ctx, meta); err != nil {
		return err
	}
	r.cache.Set(meta.CameraID, meta, cache.DefaultExpiration)
	return nil
}

// Get reads camera metadata, serving repeated lookups from the cache.
func (r *CameraRegistry) Get(ctx context.Context, cameraID string) (*trackstore.CameraMetadata, error) {
	if cached, found := r.cache.Get(cameraID); found {
		return cached.(*trackstore.CameraMetadata), nil
	}

	meta, err := r.store.GetCameraMetadata(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	r.cache.Set(cameraID, meta, cache.DefaultExpiration)
	return meta, nil
}

// List returns all registered cameras, bypassing the cache.
func (r *CameraRegistry) List(ctx context.Context) ([]*trackstore.CameraMetadata, error) {
	return r.store.ListCameras(ctx)
}
