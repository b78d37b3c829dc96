package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification types. The set is open; these are the ones the core emits.
const (
	NotificationTypeGeneral = "general"
	NotificationTypeExpense = "expense"
	NotificationTypeInvite  = "invite"
	NotificationTypePayment = "payment"
)

// Notification is a per-user notice created as a side effect of ledger
// and group mutations.
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Message   string    `gorm:"not null" json:"message"`
	Type      string    `gorm:"default:'general'" json:"type"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// ActivityLog is an append-only audit record of a group mutation.
// Queried per group, newest first.
type ActivityLog struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	GroupID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"group_id"`
	UserID    uint            `gorm:"not null" json:"user_id"`
	Action    string          `gorm:"not null" json:"action"`
	Data      json.RawMessage `gorm:"type:text" json:"data,omitempty"`
	Timestamp time.Time       `gorm:"autoCreateTime" json:"timestamp"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
