package activity

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// Handler handles activity log and notification requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new activity handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// ActivityResponse represents an activity entry in API responses
type ActivityResponse struct {
	ID        uint            `json:"id"`
	GroupID   string          `json:"group_id"`
	UserID    uint            `json:"user_id"`
	User      string          `json:"user"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        uint   `json:"id"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// ListActivity returns a group's activity log, newest first
// @Summary List group activity
// @Description Get the activity log for a group (members only). The group query parameter is required.
// @Tags activity
// @Produce json
// @Param group query string true "Group ID"
// @Success 200 {array} ActivityResponse
// @Failure 400 {object} map[string]string "Missing or invalid group parameter"
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /activity-logs [get]
func (h *Handler) ListActivity(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	groupParam := c.Query("group")
	if groupParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'group' query parameter"})
		return
	}
	groupID, err := uuid.Parse(groupParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	// Check membership
	if err := h.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&models.GroupMember{}).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}

	var entries []models.ActivityLog
	if err := h.db.Preload("User").Where("group_id = ?", groupID).Order("timestamp DESC, id DESC").Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch activity"})
		return
	}

	responses := make([]ActivityResponse, len(entries))
	for i, e := range entries {
		responses[i] = ActivityResponse{
			ID:        e.ID,
			GroupID:   e.GroupID.String(),
			UserID:    e.UserID,
			User:      h.displayName(e.UserID, e.User.Username),
			Action:    e.Action,
			Data:      e.Data,
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z"),
		}
	}

	c.JSON(http.StatusOK, responses)
}

// displayName resolves the acting user to a display identifier,
// preferring the profile display name over the username.
func (h *Handler) displayName(userID uint, username string) string {
	var profile models.UserProfile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err == nil && profile.DisplayName != "" {
		return profile.DisplayName
	}
	return username
}

// ListNotifications returns the caller's notifications, newest first
// @Summary List notifications
// @Description Get the current user's notifications, most recent first
// @Tags activity
// @Produce json
// @Success 200 {array} NotificationResponse
// @Security BearerAuth
// @Router /notifications [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var notifications []models.Notification
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	responses := make([]NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = NotificationResponse{
			ID:        n.ID,
			Message:   n.Message,
			Type:      n.Type,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	c.JSON(http.StatusOK, responses)
}

// MarkNotificationRead marks one of the caller's notifications as read
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var notification models.Notification
	if err := h.db.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&notification).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	notification.IsRead = true
	if err := h.db.Save(&notification).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked read"})
}

// RegisterRoutes registers activity and notification routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/activity-logs", h.ListActivity)
	rg.GET("/notifications", h.ListNotifications)
	rg.PUT("/notifications/:id/read", h.MarkNotificationRead)
}
