package registry

import (
	"bitwise74/model-vault/internal/model"
	"bitwise74/model-vault/internal/storage"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UploadInput struct {
	OwnerID      string
	OriginalName string
	Name         string
	Description  string
	IsPublic     bool
	Tags         model.StringSlice
	ContentType  string
}

// Store writes r to the storage provider and records the asset. The row is
// only created after the bytes are confirmed, and the bytes are removed
// again if the row can't be created.
func (r *Registry) Store(ctx context.Context, in UploadInput, body io.Reader) (*model.Asset, error) {
	loc, err := r.store.Upload(ctx, body, in.OriginalName)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.TrimSuffix(in.OriginalName, path.Ext(in.OriginalName))
	}

	tags := in.Tags
	if tags == nil {
		tags = model.StringSlice{}
	}

	a := &model.Asset{
		Name:           name,
		Description:    in.Description,
		StoredName:     loc.StoredName,
		OriginalName:   in.OriginalName,
		SizeBytes:      loc.Size,
		Extension:      storage.Ext(in.OriginalName),
		ContentType:    in.ContentType,
		Tags:           tags,
		OwnerID:        in.OwnerID,
		IsPublic:       in.IsPublic,
		StorageBackend: loc.Backend,
		ExternalRef:    loc.ExternalRef,
	}

	if err := r.Create(ctx, a); err != nil {
		// The request may already be gone, the cleanup still has to run
		deleted, derr := r.store.Delete(context.WithoutCancel(ctx), loc)
		if derr != nil || !deleted {
			zap.L().Error("Failed to cleanup after failed asset insert",
				zap.String("backend", loc.Backend),
				zap.String("storedName", loc.StoredName),
				zap.Bool("deleted", deleted),
				zap.Error(derr),
			)
		} else {
			zap.L().Debug("Cleaned up after failed asset insert", zap.String("storedName", loc.StoredName))
		}

		return nil, err
	}

	return a, nil
}

// Create inserts the asset and updates the owner's stats in one transaction
func (r *Registry) Create(ctx context.Context, a *model.Asset) error {
	// IsPublic defaults to true in the schema, a false value has to be
	// written explicitly or gorm skips it
	isPublic := a.IsPublic

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(a).Error; err != nil {
			return err
		}

		if !isPublic {
			if err := tx.Model(a).UpdateColumn("is_public", false).Error; err != nil {
				return err
			}
			a.IsPublic = false
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", a.OwnerID).
			Updates(map[string]any{
				"used_storage":    gorm.Expr("used_storage + ?", a.SizeBytes),
				"uploaded_assets": gorm.Expr("uploaded_assets + ?", 1),
			}).
			Error
	})
	if err != nil {
		return fmt.Errorf("failed to save asset, %w", err)
	}

	return nil
}
