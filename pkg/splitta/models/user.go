package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account in the system
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `json:"-"`
	ProfileImg   string         `json:"profile_img,omitempty"` // opaque reference, upload handling is a collaborator concern

	// Relationships
	Memberships   []GroupMember  `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
	Splits        []ExpenseSplit `gorm:"foreignKey:UserID" json:"splits,omitempty"`
	Notifications []Notification `gorm:"foreignKey:UserID" json:"notifications,omitempty"`
}

// UserProfile holds the display data attached one-to-one to a User.
// Created lazily on the first profile update.
type UserProfile struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	DisplayName string    `json:"display_name"`
	UpdatedAt   time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// DisplayIdentifier resolves the name shown for a user in feeds,
// preferring the profile display name over the username.
func (p *UserProfile) DisplayIdentifier() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.User.Username
}
