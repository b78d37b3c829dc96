package groups

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/splitta/splitta/pkg/splitta/activity"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// MemberResponse represents a group membership in API responses
type MemberResponse struct {
	ID       string `json:"id"`
	GroupID  string `json:"group_id"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
	JoinedAt string `json:"joined_at"`
}

// AddMemberRequest represents a request to add a member to a group.
// The target user is identified by id or by email.
type AddMemberRequest struct {
	GroupID string `json:"group_id" binding:"required,uuid"`
	UserID  uint   `json:"user_id"`
	Email   string `json:"email" binding:"omitempty,email"`
	IsAdmin bool   `json:"is_admin"`
}

// UpdateMemberRequest represents a request to update a membership
type UpdateMemberRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

func membershipToResponse(m models.GroupMember) MemberResponse {
	return MemberResponse{
		ID:       m.ID.String(),
		GroupID:  m.GroupID.String(),
		UserID:   m.UserID,
		Username: m.User.Username,
		Email:    m.User.Email,
		IsAdmin:  m.IsAdmin,
		JoinedAt: m.JoinedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ListMembers returns the roster of a group (members only)
// @Summary List group members
// @Description Get all members of a group
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {array} MemberResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /groups/{id}/members [get]
func (h *Handler) ListMembers(c *gin.Context) {
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

	var memberships []models.GroupMember
	if err := h.db.Preload("User").Where("group_id = ?", groupID).Order("joined_at").Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	members := make([]MemberResponse, len(memberships))
	for i, m := range memberships {
		members[i] = membershipToResponse(m)
	}

	c.JSON(http.StatusOK, members)
}

// ListMemberships returns the caller's own memberships
// @Summary List memberships
// @Description Get the current user's group memberships
// @Tags group-members
// @Produce json
// @Success 200 {array} MemberResponse
// @Security BearerAuth
// @Router /group-members [get]
func (h *Handler) ListMemberships(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var memberships []models.GroupMember
	if err := h.db.Preload("User").Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch memberships"})
		return
	}

	members := make([]MemberResponse, len(memberships))
	for i, m := range memberships {
		members[i] = membershipToResponse(m)
	}

	c.JSON(http.StatusOK, members)
}

// AddMember adds a user to a group (group admin only)
// @Summary Add a group member
// @Description Add a user to a group by id or email (requires the admin flag)
// @Tags group-members
// @Accept json
// @Produce json
// @Param request body AddMemberRequest true "Membership details"
// @Success 201 {object} MemberResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "User or group not found"
// @Failure 409 {object} map[string]string "Already a member"
// @Security BearerAuth
// @Router /group-members [post]
func (h *Handler) AddMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == 0 && req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or email is required"})
		return
	}

	groupID, _ := uuid.Parse(req.GroupID)
	var group models.Group
	if err := h.db.First(&group, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !IsAdmin(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	// Find target user
	var targetUser models.User
	query := h.db
	if req.UserID != 0 {
		query = query.Where("id = ?", req.UserID)
	} else {
		query = query.Where("email = ?", req.Email)
	}
	if err := query.First(&targetUser).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Check if already a member
	if IsMember(h.db, targetUser.ID, groupID) {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
		return
	}

	membership := models.GroupMember{
		GroupID: groupID,
		UserID:  targetUser.ID,
		IsAdmin: req.IsAdmin,
	}

	// The unique (group, user) index is the authoritative guard against
	// concurrent duplicate inserts
	if err := h.db.Create(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}

	activity.Record(h.db, groupID, userID, activity.ActionMemberAdded, gin.H{"user_id": targetUser.ID, "username": targetUser.Username})
	activity.Notify(h.db, targetUser.ID, "You were added to group "+group.Name, models.NotificationTypeInvite)

	membership.User = targetUser
	c.JSON(http.StatusCreated, membershipToResponse(membership))
}

// GetMember returns a single membership record
// @Summary Get a membership
// @Description Get a membership record (members of the same group only)
// @Tags group-members
// @Produce json
// @Param id path string true "Membership ID"
// @Success 200 {object} MemberResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Failure 404 {object} map[string]string "Membership not found"
// @Security BearerAuth
// @Router /group-members/{id} [get]
func (h *Handler) GetMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid membership ID"})
		return
	}

	var membership models.GroupMember
	if err := h.db.Preload("User").First(&membership, "id = ?", memberID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	if !IsMember(h.db, userID, membership.GroupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}

	c.JSON(http.StatusOK, membershipToResponse(membership))
}

// UpdateMember updates a membership's admin flag (group admin only)
// @Summary Update a membership
// @Description Change a member's admin flag (requires the admin flag)
// @Tags group-members
// @Accept json
// @Produce json
// @Param id path string true "Membership ID"
// @Param request body UpdateMemberRequest true "Updated membership"
// @Success 200 {object} MemberResponse
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Membership not found"
// @Security BearerAuth
// @Router /group-members/{id} [put]
func (h *Handler) UpdateMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid membership ID"})
		return
	}

	var membership models.GroupMember
	if err := h.db.Preload("User").First(&membership, "id = ?", memberID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	if !IsAdmin(h.db, userID, membership.GroupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	membership.IsAdmin = *req.IsAdmin
	if err := h.db.Save(&membership).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}

	c.JSON(http.StatusOK, membershipToResponse(membership))
}

// RemoveMember deletes a membership (group admin only)
// @Summary Remove a group member
// @Description Remove a member from a group (requires the admin flag)
// @Tags group-members
// @Produce json
// @Param id path string true "Membership ID"
// @Success 200 {object} map[string]string "Member removed"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Membership not found"
// @Security BearerAuth
// @Router /group-members/{id} [delete]
func (h *Handler) RemoveMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	memberID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid membership ID"})
		return
	}

	var membership models.GroupMember
	if err := h.db.First(&membership, "id = ?", memberID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Membership not found"})
		return
	}

	if !IsAdmin(h.db, userID, membership.GroupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	// Prevent removing the last admin
	if membership.IsAdmin {
		var adminCount int64
		h.db.Model(&models.GroupMember{}).Where("group_id = ? AND is_admin = ?", membership.GroupID, true).Count(&adminCount)
		if adminCount <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the last admin"})
			return
		}
	}

	if err := h.db.Delete(&membership).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	activity.Record(h.db, membership.GroupID, userID, activity.ActionMemberRemoved, gin.H{"user_id": membership.UserID})

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// RegisterMemberRoutes registers the group-members resource routes
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListMemberships)
	rg.POST("", h.AddMember)
	rg.GET("/:id", h.GetMember)
	rg.PUT("/:id", h.UpdateMember)
	rg.DELETE("/:id", h.RemoveMember)
}
