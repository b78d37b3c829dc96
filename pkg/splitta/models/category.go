package models

import "gorm.io/gorm"

// Conventional category labels. Free text is accepted too; these are the
// values clients usually offer.
const (
	CategoryFood          = "food"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryOther         = "other"
)

// Category is a per-user expense label. Deleting a category clears the
// reference on dependent expenses rather than deleting them.
type Category struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	CreatedByID uint           `gorm:"not null;index" json:"created_by_id"`

	CreatedBy User `gorm:"foreignKey:CreatedByID" json:"-"`
}
