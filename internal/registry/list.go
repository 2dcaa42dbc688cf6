package registry

import (
	"bitwise74/model-vault/internal/model"
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

type Filter struct {
	// Search is matched case-insensitively against name and description
	Search string
}

// Page is 1-based. Out of range values are clamped, never rejected.
type Page struct {
	Page    int
	PerPage int
}

type PageResult struct {
	Assets  []model.Asset `json:"assets"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	Pages   int           `json:"pages"`
	PerPage int           `json:"perPage"`
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}

	switch {
	case p.PerPage == 0:
		p.PerPage = DefaultPerPage
	case p.PerPage < 1:
		p.PerPage = 1
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}

	return p
}

// ListPublic lists every public asset, newest first
func (r *Registry) ListPublic(ctx context.Context, f Filter, p Page) (PageResult, error) {
	q := r.db.WithContext(ctx).Model(&model.Asset{}).Where("is_public = ?", true)
	return r.list(q, f, p)
}

// ListByOwner lists both public and private assets of ownerID, newest first
func (r *Registry) ListByOwner(ctx context.Context, ownerID string, f Filter, p Page) (PageResult, error) {
	q := r.db.WithContext(ctx).Model(&model.Asset{}).Where("owner_id = ?", ownerID)
	return r.list(q, f, p)
}

func (r *Registry) list(q *gorm.DB, f Filter, p Page) (PageResult, error) {
	p = p.normalize()

	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where("(LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\')", like, like)
	}

	res := PageResult{
		Assets:  []model.Asset{},
		Page:    p.Page,
		PerPage: p.PerPage,
	}

	if err := q.Session(&gorm.Session{}).Count(&res.Total).Error; err != nil {
		return res, fmt.Errorf("failed to count assets, %w", err)
	}

	res.Pages = int((res.Total + int64(p.PerPage) - 1) / int64(p.PerPage))

	// Past the last page. Also keeps the offset below from overflowing.
	if res.Total == 0 || p.Page > res.Pages {
		return res, nil
	}

	err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(p.PerPage).
		Offset((p.Page - 1) * p.PerPage).
		Find(&res.Assets).
		Error
	if err != nil {
		return res, fmt.Errorf("failed to list assets, %w", err)
	}

	return res, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
