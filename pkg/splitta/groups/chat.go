package groups

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
)

// PostMessageRequest represents a chat message to append
type PostMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// MessageResponse represents a chat message in API responses
type MessageResponse struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func messageToResponse(m models.GroupChatMessage) MessageResponse {
	return MessageResponse{
		ID:        m.ID.String(),
		GroupID:   m.GroupID.String(),
		UserID:    m.UserID,
		Username:  m.User.Username,
		Message:   m.Message,
		Timestamp: m.Timestamp.Format("2006-01-02T15:04:05Z"),
	}
}

// ListMessages returns a group's chat log ordered by timestamp
// @Summary List group messages
// @Description Get the chat log of a group (members only)
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {array} MessageResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /groups/{id}/messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	if !IsMember(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}

	var messages []models.GroupChatMessage
	if err := h.db.Preload("User").Where("group_id = ?", groupID).Order("timestamp, id").Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	responses := make([]MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = messageToResponse(m)
	}

	c.JSON(http.StatusOK, responses)
}

// PostMessage appends a chat message. Messages are append-only; there is
// no edit or delete.
// @Summary Post a group message
// @Description Append a chat message to a group (members only)
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body PostMessageRequest true "Message"
// @Success 201 {object} MessageResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /groups/{id}/messages [post]
func (h *Handler) PostMessage(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	if !IsMember(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message := models.GroupChatMessage{
		GroupID: groupID,
		UserID:  userID,
		Message: req.Message,
	}
	if err := h.db.Create(&message).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to post message"})
		return
	}

	h.db.Preload("User").First(&message, "id = ?", message.ID)
	c.JSON(http.StatusCreated, messageToResponse(message))
}
