// Package catalog loads and seeds the photo category catalog.
package catalog

import (
	"context"

	"github.com/smbt-dev/inspectgo/internal/apperr"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/models"
	"gorm.io/gorm"
)

// Loader reads the category catalog
type Loader struct {
	db *database.DB
}

// NewLoader creates a Loader over db
func NewLoader(db *database.DB) *Loader {
	return &Loader{db: db}
}

// LoadCategories returns every category in catalog order with its image
// groups preloaded. Each call returns a fresh slice.
func (l *Loader) LoadCategories(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := l.db.WithTimeout(ctx)
	defer cancel()

	return Load(l.db.WithContext(ctx))
}

// Load reads the catalog through tx, which may be a snapshot transaction.
func Load(tx *gorm.DB) ([]models.Category, error) {
	var categories []models.Category
	err := tx.
		Preload("ImageGroups", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id ASC").
		Find(&categories).Error
	if err != nil {
		return nil, apperr.Store("load categories", err)
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}
