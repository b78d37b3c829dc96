package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment records that one user settled money with another inside a
// group, optionally against a specific split and/or expense. Append-only:
// settled_at is set at insert and never changes, and recording a payment
// never mutates the linked split's paid flag — that is a separate split
// update by the caller.
type Payment struct {
	ID         uint            `gorm:"primarykey" json:"id"`
	FromUserID uint            `gorm:"not null;index" json:"from_user_id"`
	ToUserID   uint            `gorm:"not null;index" json:"to_user_id"`
	GroupID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"group_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	SplitID    *uint           `json:"split_id,omitempty"`   // nulled if the split is deleted
	ExpenseID  *uuid.UUID      `gorm:"type:uuid" json:"expense_id,omitempty"` // nulled if the expense is deleted
	Note       string          `gorm:"type:text" json:"note,omitempty"`
	SettledAt  time.Time       `gorm:"autoCreateTime" json:"settled_at"`

	// Relationships
	FromUser User          `gorm:"foreignKey:FromUserID" json:"from_user,omitempty"`
	ToUser   User          `gorm:"foreignKey:ToUserID" json:"to_user,omitempty"`
	Group    Group         `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Split    *ExpenseSplit `gorm:"foreignKey:SplitID" json:"split,omitempty"`
	Expense  *Expense      `gorm:"foreignKey:ExpenseID" json:"expense,omitempty"`
}
