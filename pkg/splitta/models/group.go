package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group represents a collection of users sharing expenses.
// Group ids are UUIDs so they are unguessable across tenants.
type Group struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"last_updated"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"not null" json:"name"`
	CreatedByID uint           `gorm:"not null" json:"created_by_id"`

	// Relationships
	CreatedBy User               `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Members   []GroupMember      `gorm:"foreignKey:GroupID" json:"members,omitempty"`
	Expenses  []Expense          `gorm:"foreignKey:GroupID" json:"expenses,omitempty"`
	Messages  []GroupChatMessage `gorm:"foreignKey:GroupID" json:"messages,omitempty"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GroupMember represents the many-to-many relationship between users and
// groups. A (group, user) pair appears at most once; the unique index is
// the authoritative guard against concurrent duplicate inserts.
type GroupMember struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_user" json:"group_id"`
	UserID   uint      `gorm:"not null;uniqueIndex:idx_group_user" json:"user_id"`
	IsAdmin  bool      `gorm:"default:false" json:"is_admin"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	// Relationships
	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *GroupMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// GroupChatMessage is an append-only chat entry within a group.
// No edit or delete; listing is ordered by timestamp.
type GroupChatMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *GroupChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
