package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed seed.yaml
var defaultSeed []byte

type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
}

type seedCategory struct {
	ID     uint        `yaml:"id"`
	Title  string      `yaml:"title"`
	Kind   string      `yaml:"kind"`
	Groups []seedGroup `yaml:"groups"`
}

type seedGroup struct {
	ID    uint   `yaml:"id"`
	Title string `yaml:"title"`
}

// ReadSeed returns the seed at path, or the embedded default when path is empty
func ReadSeed(path string) ([]byte, error) {
	if path == "" {
		return defaultSeed, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog seed: %w", err)
	}
	return data, nil
}

// ParseSeed decodes and validates YAML seed data
func ParseSeed(data []byte) ([]models.Category, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog seed: %w", err)
	}

	categoryIDs := make(map[uint]bool)
	groupIDs := make(map[uint]bool)
	categories := make([]models.Category, 0, len(f.Categories))

	for _, sc := range f.Categories {
		if sc.ID == 0 || sc.Title == "" {
			return nil, fmt.Errorf("category needs an id and a title: %+v", sc)
		}
		if categoryIDs[sc.ID] {
			return nil, fmt.Errorf("duplicate category id %d", sc.ID)
		}
		categoryIDs[sc.ID] = true

		kind, err := models.ParseCategoryKind(sc.Kind)
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", sc.ID, err)
		}
		if kind != models.KindImageGroup && len(sc.Groups) > 0 {
			return nil, fmt.Errorf("category %d: image groups are only allowed for kind %s", sc.ID, models.KindImageGroup)
		}

		c := models.Category{ID: sc.ID, Title: sc.Title, Kind: kind}
		for _, sg := range sc.Groups {
			if sg.ID == 0 || sg.Title == "" {
				return nil, fmt.Errorf("category %d: image group needs an id and a title", sc.ID)
			}
			if groupIDs[sg.ID] {
				return nil, fmt.Errorf("duplicate image group id %d", sg.ID)
			}
			groupIDs[sg.ID] = true
			c.ImageGroups = append(c.ImageGroups, models.ImageGroup{ID: sg.ID, Title: sg.Title, CategoryID: sc.ID})
		}
		categories = append(categories, c)
	}
	return categories, nil
}

// Seed upserts the categories and image groups described by data and
// returns the number of categories written.
func Seed(ctx context.Context, db *database.DB, data []byte) (int, error) {
	categories, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	if len(categories) == 0 {
		return 0, nil
	}

	var groups []models.ImageGroup
	for _, c := range categories {
		groups = append(groups, c.ImageGroups...)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "kind"}),
		}).Create(&categories).Error; err != nil {
			return fmt.Errorf("failed to upsert categories: %w", err)
		}
		if len(groups) == 0 {
			return nil
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "category_id"}),
		}).Create(&groups).Error; err != nil {
			return fmt.Errorf("failed to upsert image groups: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(categories), nil
}
