package models

import (
	"time"

	"gorm.io/datatypes"
)

// RequestStatus defines possible inspection request statuses
type RequestStatus string

const (
	StatusNew        RequestStatus = "new"         // Created, nobody assigned
	StatusAssigned   RequestStatus = "assigned"    // Inspector assigned
	StatusInProgress RequestStatus = "in_progress" // Inspection under way, photos being uploaded
	StatusCompleted  RequestStatus = "completed"   // Report submitted
	StatusCancelled  RequestStatus = "cancelled"
)

var statusTransitions = map[RequestStatus][]RequestStatus{
	StatusNew:        {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a request may move from s to next.
// Completed and cancelled are terminal.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Request is an inspection order. It owns work photos and movable property rows.
type Request struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Address        string         `gorm:"not null" json:"address"`
	CustomerName   string         `json:"customer_name"`
	CustomerPhone  string         `json:"customer_phone"`
	Comment        string         `gorm:"type:text" json:"comment"`
	Status         RequestStatus  `gorm:"type:varchar(32);default:'new';index" json:"status"`
	CreatedByID    *uint          `gorm:"index" json:"created_by_id,omitempty"`
	ExterminatorID *uint          `gorm:"index" json:"exterminator_id,omitempty"` // assigned inspector
	Metadata       datatypes.JSON `json:"metadata,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Relations
	MovableProperty []MovableProperty `gorm:"foreignKey:RequestID" json:"movable_property,omitempty"`
	Exterminator    *Person           `gorm:"foreignKey:ExterminatorID" json:"exterminator,omitempty"`
}

// TableName specifies the table name for Request model
func (Request) TableName() string {
	return "smbt_requests"
}

// MovableProperty is an item declared at request creation (furniture,
// appliances). The inspector fills FactCount and Comment on site.
type MovableProperty struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	RequestID uint    `gorm:"not null;index" json:"request_id"`
	Title     string  `gorm:"not null" json:"title"`
	Count     int     `gorm:"default:1" json:"count"`
	Unit      string  `json:"unit"`
	FactCount *int    `json:"fact_count,omitempty"`
	Comment   *string `gorm:"type:text" json:"comment,omitempty"`
}

// TableName specifies the table name for MovableProperty model
func (MovableProperty) TableName() string {
	return "smbt_movable_property"
}
