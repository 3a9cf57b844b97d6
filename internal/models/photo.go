package models

import "time"

// WorkPhoto is a photo uploaded during an inspection. Depending on the kind
// of its category it references an image group, a movable property row, or
// neither (flat categories).
type WorkPhoto struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           uint      `gorm:"not null;index" json:"order_id"`
	Image             string    `gorm:"not null" json:"image"`
	ImageGroupID      *uint     `gorm:"index" json:"image_group_id,omitempty"`
	MovablePropertyID *uint     `gorm:"index" json:"movable_property_id,omitempty"`
	GroupCategoryID   uint      `gorm:"not null;index" json:"group_category_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// TableName specifies the table name for WorkPhoto model
func (WorkPhoto) TableName() string {
	return "smbt_work_photos"
}

// IdentityCardPhoto is a scan of the identity document of the person present
// at the inspection.
type IdentityCardPhoto struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReportID  uint      `gorm:"not null;index" json:"report_id"`
	Photo     string    `gorm:"not null" json:"photo"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for IdentityCardPhoto model
func (IdentityCardPhoto) TableName() string {
	return "smbt_lpo_identity_cards"
}
