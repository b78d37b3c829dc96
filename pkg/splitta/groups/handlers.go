package groups

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/splitta/splitta/pkg/splitta/activity"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// Handler handles group-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CreatedByID uint   `json:"created_by_id"`
	IsAdmin     bool   `json:"is_admin,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
	CreatedAt   string `json:"created_at"`
	LastUpdated string `json:"last_updated"`
}

func groupToResponse(group models.Group, isAdmin bool, memberCount int) GroupResponse {
	return GroupResponse{
		ID:          group.ID.String(),
		Name:        group.Name,
		CreatedByID: group.CreatedByID,
		IsAdmin:     isAdmin,
		MemberCount: memberCount,
		CreatedAt:   group.CreatedAt.Format("2006-01-02T15:04:05Z"),
		LastUpdated: group.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// creatorIsAdmin reports whether group creators get the admin flag on
// their initial membership. On by default; set
// SPLITTA_CREATOR_IS_ADMIN=false to insert the creator as a plain member.
func creatorIsAdmin() bool {
	return os.Getenv("SPLITTA_CREATOR_IS_ADMIN") != "false"
}

// IsMember reports whether the user belongs to the group. This is the
// single authorization primitive every group-scoped resource goes
// through.
func IsMember(db *gorm.DB, userID uint, groupID uuid.UUID) bool {
	var membership models.GroupMember
	return db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&membership).Error == nil
}

// IsAdmin reports whether the user is an admin member of the group.
func IsAdmin(db *gorm.DB, userID uint, groupID uuid.UUID) bool {
	var membership models.GroupMember
	return db.Where("user_id = ? AND group_id = ? AND is_admin = ?", userID, groupID, true).First(&membership).Error == nil
}

// List returns all groups the current user is a member of
// @Summary List groups
// @Description Get all groups the current user is a member of
// @Tags groups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var memberships []models.GroupMember
	if err := h.db.Preload("Group").Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}

	groups := make([]GroupResponse, len(memberships))
	for i, m := range memberships {
		var memberCount int64
		h.db.Model(&models.GroupMember{}).Where("group_id = ?", m.GroupID).Count(&memberCount)

		groups[i] = groupToResponse(m.Group, m.IsAdmin, int(memberCount))
	}

	c.JSON(http.StatusOK, groups)
}

// Create creates a new group and adds the creator as its first member
// @Summary Create a group
// @Description Create a new group with the current user as its first member
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	admin := creatorIsAdmin()

	// Create group and first membership in a transaction so a group can
	// never exist without its creator on the roster
	var group models.Group
	err := h.db.Transaction(func(tx *gorm.DB) error {
		group = models.Group{
			Name:        req.Name,
			CreatedByID: userID,
		}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}

		membership := models.GroupMember{
			GroupID: group.ID,
			UserID:  userID,
			IsAdmin: admin,
		}
		return tx.Create(&membership).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	activity.Record(h.db, group.ID, userID, activity.ActionGroupCreated, gin.H{"name": group.Name})

	c.JSON(http.StatusCreated, groupToResponse(group, admin, 1))
}

// Get returns a specific group
// @Summary Get a group
// @Description Get details of a specific group (members only)
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.Group
	if err := h.db.First(&group, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	var membership models.GroupMember
	if err := h.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&membership).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}

	var memberCount int64
	h.db.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&memberCount)

	c.JSON(http.StatusOK, groupToResponse(group, membership.IsAdmin, int(memberCount)))
}

// Update updates a group (admin only)
// @Summary Update a group
// @Description Update a group's name (requires the admin flag)
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body UpdateGroupRequest true "Updated group details"
// @Success 200 {object} GroupResponse
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.Group
	if err := h.db.First(&group, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !IsAdmin(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group.Name = req.Name
	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update group"})
		return
	}

	var memberCount int64
	h.db.Model(&models.GroupMember{}).Where("group_id = ?", groupID).Count(&memberCount)

	c.JSON(http.StatusOK, groupToResponse(group, true, int(memberCount)))
}

// Delete deletes a group and everything it owns (admin only)
// @Summary Delete a group
// @Description Delete a group, its memberships, expenses, splits, payments, messages, and activity
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} map[string]string "Group deleted"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	if err := h.db.First(&models.Group{}, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !IsAdmin(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	// The group owns its memberships, expenses (and their splits),
	// payments, chat messages, and activity entries; delete them in one
	// transaction. Payments in other groups that referenced this group's
	// splits or expenses keep their record with the links cleared.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		var expenseIDs []uuid.UUID
		if err := tx.Model(&models.Expense{}).Where("group_id = ?", groupID).Pluck("id", &expenseIDs).Error; err != nil {
			return err
		}
		if len(expenseIDs) > 0 {
			var splitIDs []uint
			if err := tx.Model(&models.ExpenseSplit{}).Where("expense_id IN ?", expenseIDs).Pluck("id", &splitIDs).Error; err != nil {
				return err
			}
			if len(splitIDs) > 0 {
				if err := tx.Model(&models.Payment{}).Where("split_id IN ?", splitIDs).Update("split_id", nil).Error; err != nil {
					return err
				}
			}
			if err := tx.Model(&models.Payment{}).Where("expense_id IN ?", expenseIDs).Update("expense_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("expense_id IN ?", expenseIDs).Delete(&models.ExpenseSplit{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.Expense{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupChatMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, "id = ?", groupID).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// RegisterRoutes registers group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/members", h.ListMembers)
	rg.GET("/:id/messages", h.ListMessages)
	rg.POST("/:id/messages", h.PostMessage)
}
