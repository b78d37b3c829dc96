package activity

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// Actions emitted by the core. The list is open-ended; readers treat the
// action as an opaque label.
const (
	ActionGroupCreated    = "group created"
	ActionMemberAdded     = "member added"
	ActionMemberRemoved   = "member removed"
	ActionExpenseCreated  = "expense created"
	ActionExpenseUpdated  = "expense updated"
	ActionExpenseDeleted  = "expense deleted"
	ActionPaymentRecorded = "payment recorded"
)

// Record appends an activity entry for a group mutation. A failed write
// is logged and swallowed: audit trail problems must not fail the
// mutation that triggered them.
func Record(db *gorm.DB, groupID uuid.UUID, userID uint, action string, data interface{}) {
	var payload json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			logrus.WithError(err).WithField("action", action).Warn("Failed to encode activity payload")
		} else {
			payload = b
		}
	}

	entry := models.ActivityLog{
		GroupID: groupID,
		UserID:  userID,
		Action:  action,
		Data:    payload,
	}
	if err := db.Create(&entry).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"group_id": groupID,
			"action":   action,
		}).Warn("Failed to record activity")
	}
}

// Notify creates a notification for a single user. Same failure policy
// as Record.
func Notify(db *gorm.DB, userID uint, message, notificationType string) {
	n := models.Notification{
		UserID:  userID,
		Message: message,
		Type:    notificationType,
	}
	if err := db.Create(&n).Error; err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Failed to create notification")
	}
}

// NotifyGroup notifies every member of a group except the acting user.
func NotifyGroup(db *gorm.DB, groupID uuid.UUID, actorID uint, message, notificationType string) {
	var memberships []models.GroupMember
	if err := db.Where("group_id = ?", groupID).Find(&memberships).Error; err != nil {
		logrus.WithError(err).WithField("group_id", groupID).Warn("Failed to load members for notification")
		return
	}
	for _, m := range memberships {
		if m.UserID == actorID {
			continue
		}
		Notify(db, m.UserID, message, notificationType)
	}
}
