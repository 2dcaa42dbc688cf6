package registry

import (
	"bitwise74/model-vault/internal/model"
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// MissingFilter narrows operator actions on flagged assets. Empty fields
// match everything.
type MissingFilter struct {
	OwnerID   string
	Extension string
}

func (f MissingFilter) apply(q *gorm.DB) *gorm.DB {
	return f.applyTo(q, "")
}

// applyTo qualifies every column with table, needed once users is joined
func (f MissingFilter) applyTo(q *gorm.DB, table string) *gorm.DB {
	col := func(name string) string {
		if table == "" {
			return name
		}
		return table + "." + name
	}

	q = q.Where(col("missing")+" = ?", true)

	if f.OwnerID != "" {
		q = q.Where(col("owner_id")+" = ?", f.OwnerID)
	}

	if f.Extension != "" {
		q = q.Where(col("extension")+" = ?", strings.ToLower(strings.TrimPrefix(f.Extension, ".")))
	}

	return q
}

// MissingAsset is a flagged asset joined with the identity of its owner
type MissingAsset struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	StoredName     string    `json:"storedName"`
	ExternalRef    string    `json:"externalRef"`
	StorageBackend string    `json:"storageBackend"`
	Extension      string    `json:"extension"`
	SizeBytes      int64     `json:"sizeBytes"`
	OwnerID        string    `json:"ownerId"`
	OwnerUsername  string    `json:"ownerUsername"`
	OwnerEmail     string    `json:"ownerEmail"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SetMissing changes the integrity flag of a single asset. Only the
// integrity checker calls this.
func (r *Registry) SetMissing(ctx context.Context, id uint, missing bool) error {
	q := r.db.
		WithContext(ctx).
		Model(&model.Asset{}).
		Where("id = ?", id).
		UpdateColumn("missing", missing)
	if q.Error != nil {
		return fmt.Errorf("failed to update missing flag, %w", q.Error)
	}

	if q.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ListMissing returns every flagged asset matching f, oldest first
func (r *Registry) ListMissing(ctx context.Context, f MissingFilter) ([]MissingAsset, error) {
	out := []MissingAsset{}

	q := r.db.
		WithContext(ctx).
		Table("assets").
		Select(`assets.id, assets.name, assets.stored_name, assets.external_ref,
			assets.storage_backend, assets.extension, assets.size_bytes, assets.owner_id,
			users.username AS owner_username, users.email AS owner_email, assets.created_at`).
		Joins("LEFT JOIN users ON users.id = assets.owner_id")

	q = f.applyTo(q, "assets")

	if err := q.Order("assets.id ASC").Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list missing assets, %w", err)
	}

	return out, nil
}

func (r *Registry) CountMissing(ctx context.Context, f MissingFilter) (int64, error) {
	var n int64

	err := f.apply(r.db.WithContext(ctx).Model(&model.Asset{})).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count missing assets, %w", err)
	}

	return n, nil
}

// ResetMissing clears the flag of every asset matching f and returns how
// many were changed
func (r *Registry) ResetMissing(ctx context.Context, f MissingFilter) (int64, error) {
	q := f.apply(r.db.WithContext(ctx).Model(&model.Asset{})).UpdateColumn("missing", false)
	if q.Error != nil {
		return 0, fmt.Errorf("failed to reset missing flags, %w", q.Error)
	}

	return q.RowsAffected, nil
}

// PruneMissing removes the rows of every flagged asset matching f and
// returns how many were removed. The owners' stats are adjusted.
func (r *Registry) PruneMissing(ctx context.Context, f MissingFilter) (int64, error) {
	var pruned int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assets []model.Asset

		err := f.apply(tx.Model(&model.Asset{})).
			Select("id", "owner_id", "size_bytes").
			Find(&assets).
			Error
		if err != nil {
			return err
		}

		for _, a := range assets {
			q := tx.Where("id = ?", a.ID).Delete(&model.Asset{})
			if q.Error != nil {
				return q.Error
			}

			if q.RowsAffected == 0 {
				continue
			}

			err = tx.
				Model(model.Stats{}).
				Where("user_id = ?", a.OwnerID).
				Updates(map[string]any{
					"used_storage":    gorm.Expr("used_storage - ?", a.SizeBytes),
					"uploaded_assets": gorm.Expr("uploaded_assets - ?", 1),
				}).
				Error
			if err != nil {
				return err
			}

			pruned++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune missing assets, %w", err)
	}

	return pruned, nil
}

// Batch returns up to limit assets with an id bigger than afterID, ordered
// by id. It's used to walk the whole table without loading it at once.
func (r *Registry) Batch(ctx context.Context, afterID uint, limit int) ([]model.Asset, error) {
	var assets []model.Asset

	err := r.db.
		WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&assets).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset batch, %w", err)
	}

	return assets, nil
}
