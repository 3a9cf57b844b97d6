package models

import "fmt"

// CategoryKind selects how photos of a category are grouped
type CategoryKind string

const (
	KindImageGroup      CategoryKind = "image_group"      // one item per image group
	KindMovableProperty CategoryKind = "movable_property" // one item per movable property row of the request
	KindFlat            CategoryKind = "flat"             // a single item with every photo
)

// Valid reports whether k is one of the known kinds
func (k CategoryKind) Valid() bool {
	switch k {
	case KindImageGroup, KindMovableProperty, KindFlat:
		return true
	}
	return false
}

// ParseCategoryKind converts seed data into a CategoryKind
func ParseCategoryKind(s string) (CategoryKind, error) {
	k := CategoryKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown category kind %q", s)
	}
	return k, nil
}

// Category is a photo category of the inspection catalog (reference data)
type Category struct {
	ID    uint         `gorm:"primaryKey" json:"id"`
	Title string       `gorm:"not null" json:"title"`
	Kind  CategoryKind `gorm:"type:varchar(32);not null;default:'image_group'" json:"kind"`

	// Relations
	ImageGroups []ImageGroup `gorm:"foreignKey:CategoryID" json:"image_groups,omitempty"`
}

// TableName specifies the table name for Category model
func (Category) TableName() string {
	return "smbt_group_categories"
}

// ImageGroup is a named slot inside a category (e.g. "Facade")
type ImageGroup struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Title      string `gorm:"not null" json:"title"`
	CategoryID uint   `gorm:"not null;index" json:"category_id"`
}

// TableName specifies the table name for ImageGroup model
func (ImageGroup) TableName() string {
	return "smbt_image_groups"
}
