package registry

import (
	"bitwise74/model-vault/internal/model"
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DeleteResult struct {
	// PhysicalDeleted is false when the bytes were already gone or couldn't
	// be removed
	PhysicalDeleted bool
	PhysicalErr     error
}

// Delete removes an asset owned by ownerID. Removing the bytes is attempted
// first but its failure never keeps the row around.
func (r *Registry) Delete(ctx context.Context, id uint, ownerID string) (DeleteResult, error) {
	a, err := r.GetOwned(ctx, id, ownerID)
	if err != nil {
		return DeleteResult{}, err
	}

	// Once the bytes are gone the row has to follow, even if the caller left
	ctx = context.WithoutCancel(ctx)

	res := r.deletePhysical(ctx, a)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("id = ?", a.ID).Delete(&model.Asset{})
		if q.Error != nil {
			return q.Error
		}

		// Someone else got here first
		if q.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", a.OwnerID).
			Updates(map[string]any{
				"used_storage":    gorm.Expr("used_storage - ?", a.SizeBytes),
				"uploaded_assets": gorm.Expr("uploaded_assets - ?", 1),
			}).
			Error
	})
	if err != nil {
		if err == ErrNotFound {
			return res, err
		}

		return res, fmt.Errorf("failed to delete asset, %w", err)
	}

	return res, nil
}

// DeleteOwner removes every asset of a user together with the user row.
// Stats and remaining asset rows go with the user through the cascade.
func (r *Registry) DeleteOwner(ctx context.Context, ownerID string) (int, error) {
	var assets []model.Asset

	err := r.db.
		WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Select("id", "owner_id", "stored_name", "external_ref", "storage_backend", "size_bytes").
		Find(&assets).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to query assets of user, %w", err)
	}

	ctx = context.WithoutCancel(ctx)

	for i := range assets {
		r.deletePhysical(ctx, &assets[i])
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ?", ownerID).Delete(&model.Asset{}).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", ownerID).Delete(&model.Stats{}).Error; err != nil {
			return err
		}

		q := tx.Where("id = ?", ownerID).Delete(&model.User{})
		if q.Error != nil {
			return q.Error
		}

		if q.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user, %w", err)
	}

	return len(assets), nil
}

func (r *Registry) deletePhysical(ctx context.Context, a *model.Asset) DeleteResult {
	// Bytes written by another backend can't be reached from here
	if a.StorageBackend != r.store.Backend() {
		err := fmt.Errorf("asset stored on %q but the active backend is %q", a.StorageBackend, r.store.Backend())
		zap.L().Warn("Skipping physical delete of asset",
			zap.Uint("assetID", a.ID),
			zap.String("storedName", a.StoredName),
			zap.Error(err),
		)

		return DeleteResult{PhysicalErr: err}
	}

	deleted, err := r.store.Delete(ctx, LocationOf(a))
	if err != nil {
		zap.L().Warn("Failed to delete asset bytes, registry and storage are now out of sync",
			zap.Uint("assetID", a.ID),
			zap.String("backend", a.StorageBackend),
			zap.String("storedName", a.StoredName),
			zap.String("externalRef", a.ExternalRef),
			zap.Error(err),
		)

		return DeleteResult{PhysicalErr: err}
	}

	if !deleted {
		zap.L().Info("Asset bytes were already gone",
			zap.Uint("assetID", a.ID),
			zap.String("storedName", a.StoredName),
		)
	}

	return DeleteResult{PhysicalDeleted: deleted}
}
