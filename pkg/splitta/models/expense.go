package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is a shared cost logged against a group. Amounts are
// fixed-point with two decimal places; splits are created independently
// and are not derived from the amount.
type Expense struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	GroupID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"group_id"`
	CreatedByID uint            `gorm:"not null" json:"created_by_id"`
	Description string          `gorm:"not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	CategoryID  *uint           `json:"category_id,omitempty"` // nulled when the category is deleted
	DueDate     *time.Time      `json:"due_date,omitempty"`

	// Relationships
	Group     Group          `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	CreatedBy User           `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Category  *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Splits    []ExpenseSplit `gorm:"foreignKey:ExpenseID" json:"splits,omitempty"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExpenseSplit is one member's owed share of an expense. One split per
// (expense, user) pair, enforced by the unique index.
type ExpenseSplit struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	ExpenseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_expense_user" json:"expense_id"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_expense_user" json:"user_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	IsPaid    bool            `gorm:"default:false" json:"is_paid"`

	Expense Expense `gorm:"foreignKey:ExpenseID" json:"expense,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
