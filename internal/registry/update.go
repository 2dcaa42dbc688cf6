package registry

import (
	"bitwise74/model-vault/internal/model"
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// IncrementDownloads atomically bumps the download counter of an asset and
// the download total of its owner
func (r *Registry) IncrementDownloads(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Model(&model.Asset{}).
			Where("id = ?", id).
			UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
		if q.Error != nil {
			return fmt.Errorf("failed to increment download count, %w", q.Error)
		}

		if q.RowsAffected == 0 {
			return ErrNotFound
		}

		owner := tx.Model(&model.Asset{}).Select("owner_id").Where("id = ?", id)

		err := tx.
			Model(&model.Stats{}).
			Where("user_id = (?)", owner).
			UpdateColumn("total_downloads", gorm.Expr("total_downloads + ?", 1)).
			Error
		if err != nil {
			return fmt.Errorf("failed to increment total downloads, %w", err)
		}

		return nil
	})
}

// AssetPatch holds the owner editable fields. Nil fields are left as is.
type AssetPatch struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	IsPublic    *bool              `json:"isPublic"`
	Tags        *model.StringSlice `json:"tags"`
}

var ErrEmptyName = errors.New("name can't be empty")

// Update applies p to an asset owned by ownerID and returns the new state
func (r *Registry) Update(ctx context.Context, id uint, ownerID string, p AssetPatch) (*model.Asset, error) {
	updates := map[string]any{}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		updates["name"] = name
	}

	if p.Description != nil {
		updates["description"] = *p.Description
	}

	if p.IsPublic != nil {
		updates["is_public"] = *p.IsPublic
	}

	if p.Tags != nil {
		updates["tags"] = *p.Tags
	}

	if len(updates) > 0 {
		q := r.db.
			WithContext(ctx).
			Model(&model.Asset{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(updates)
		if q.Error != nil {
			return nil, fmt.Errorf("failed to update asset, %w", q.Error)
		}

		if q.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	return r.GetOwned(ctx, id, ownerID)
}

type Totals struct {
	PublicAssets   int64 `json:"publicAssets"`
	Users          int64 `json:"users"`
	TotalDownloads int64 `json:"totalDownloads"`
	UsedStorage    int64 `json:"usedStorage"`
}

// Totals returns instance wide numbers shown on the landing page
func (r *Registry) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Asset{}).Where("is_public = ?", true).Count(&t.PublicAssets).Error; err != nil {
		return t, fmt.Errorf("failed to count public assets, %w", err)
	}

	if err := db.Model(&model.User{}).Count(&t.Users).Error; err != nil {
		return t, fmt.Errorf("failed to count users, %w", err)
	}

	var sums struct {
		Downloads int64
		Storage   int64
	}

	err := db.
		Model(&model.Asset{}).
		Select("COALESCE(SUM(download_count), 0) AS downloads, COALESCE(SUM(size_bytes), 0) AS storage").
		Scan(&sums).
		Error
	if err != nil {
		return t, fmt.Errorf("failed to sum asset counters, %w", err)
	}

	t.TotalDownloads = sums.Downloads
	t.UsedStorage = sums.Storage

	return t, nil
}
