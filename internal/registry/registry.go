// Package registry keeps the metadata of every uploaded model and owns the
// rules tying a database row to the bytes held by the storage provider.
package registry

import (
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/storage"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Registry struct {
	db    *gorm.DB
	store storage.Provider
}

func New(db *gorm.DB, store storage.Provider) *Registry {
	return &Registry{
		db:    db,
		store: store,
	}
}

// Storage returns the provider new uploads are written to
func (r *Registry) Storage() storage.Provider {
	return r.store
}

// LocationOf builds the storage location an asset's bytes live at
func LocationOf(a *model.Asset) storage.Location {
	return storage.Location{
		Backend:     a.StorageBackend,
		StoredName:  a.StoredName,
		ExternalRef: a.ExternalRef,
		Size:        a.SizeBytes,
	}
}

func (r *Registry) Get(ctx context.Context, id uint) (*model.Asset, error) {
	var a model.Asset

	err := r.db.WithContext(ctx).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch asset, %w", err)
	}

	return &a, nil
}

// GetVisible returns the asset if viewerID may read it. Private assets of
// other users are reported exactly like nonexistent ones. An empty viewerID
// is an anonymous caller.
func (r *Registry) GetVisible(ctx context.Context, id uint, viewerID string) (*model.Asset, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !a.IsPublic && (viewerID == "" || a.OwnerID != viewerID) {
		return nil, ErrNotFound
	}

	return a, nil
}

// GetOwned returns the asset only if it belongs to ownerID
func (r *Registry) GetOwned(ctx context.Context, id uint, ownerID string) (*model.Asset, error) {
	var a model.Asset

	err := r.db.
		WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&a).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch asset, %w", err)
	}

	return &a, nil
}

// GetServable is GetVisible for requests that need the bytes. Assets
// flagged as missing, or written by a backend other than the active one,
// return ErrUnavailable.
func (r *Registry) GetServable(ctx context.Context, id uint, viewerID string) (*model.Asset, error) {
	a, err := r.GetVisible(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}

	if a.Missing || a.StorageBackend != r.store.Backend() {
		return a, ErrUnavailable
	}

	return a, nil
}

// Open streams the bytes of a servable asset. The caller must close the
// returned reader.
func (r *Registry) Open(ctx context.Context, a *model.Asset) (io.ReadCloser, error) {
	rc, err := r.store.Download(ctx, LocationOf(a))
	if err != nil {
		if errors.Is(err, storage.ErrStorageNotFound) {
			zap.L().Warn("Asset bytes are gone but the asset isn't flagged as missing",
				zap.Uint("assetID", a.ID),
				zap.String("backend", a.StorageBackend),
				zap.String("storedName", a.StoredName),
			)

			return nil, ErrUnavailable
		}

		return nil, err
	}

	return rc, nil
}

// ResolveURL returns a direct URL for the asset or an empty string when it
// has to be streamed through the application
func (r *Registry) ResolveURL(ctx context.Context, a *model.Asset) (string, error) {
	return r.store.ResolveURL(ctx, LocationOf(a))
}
