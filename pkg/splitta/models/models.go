package models

import "gorm.io/gorm"

// AllModels returns all models for migration
// Note: User must be migrated first as every other model references it
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserProfile{},
		&Group{},
		&GroupMember{},
		&GroupChatMessage{},
		&Category{},
		&Expense{},
		&ExpenseSplit{},
		&Payment{},
		&Notification{},
		&ActivityLog{},
	}
}

// AutoMigrate runs GORM auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
