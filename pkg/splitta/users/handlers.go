package users

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// Handler handles user profile requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UpdateProfileRequest represents the request to update a profile
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=255"`
	ProfileImg  string `json:"profile_img"`
}

// ProfileResponse represents a user profile in API responses
type ProfileResponse struct {
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	ProfileImg  string `json:"profile_img,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// checkOwnProfile parses the path id and rejects access to anyone else's
// profile. Profiles are only ever readable and writable by their owner.
func checkOwnProfile(c *gin.Context) (uint, bool) {
	callerID, _ := auth.GetUserID(c)
	pathID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	if uint(pathID) != callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return 0, false
	}
	return callerID, true
}

// GetProfile returns the caller's own profile
// @Summary Get own profile
// @Description Get the current user's profile; 403 for any other user's id
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} ProfileResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /users/{id}/profile [get]
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := checkOwnProfile(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	resp := ProfileResponse{
		UserID:     user.ID,
		Username:   user.Username,
		ProfileImg: user.ProfileImg,
	}

	// The profile row is created lazily; absence just means no display
	// name has been set yet
	var profile models.UserProfile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err == nil {
		resp.DisplayName = profile.DisplayName
		resp.UpdatedAt = profile.UpdatedAt.Format("2006-01-02T15:04:05Z")
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateProfile updates the caller's own profile, creating the profile
// row on first write
// @Summary Update own profile
// @Description Update the current user's profile; 403 for any other user's id
// @Tags users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateProfileRequest true "Profile details"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Access denied"
// @Security BearerAuth
// @Router /users/{id}/profile [put]
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := checkOwnProfile(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if req.ProfileImg != "" {
		user.ProfileImg = req.ProfileImg
		if err := h.db.Save(&user).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
	}

	var profile models.UserProfile
	if err := h.db.Where("user_id = ?", userID).First(&profile).Error; err != nil {
		profile = models.UserProfile{UserID: userID}
	}
	profile.DisplayName = req.DisplayName

	if err := h.db.Save(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: profile.DisplayName,
		ProfileImg:  user.ProfileImg,
		UpdatedAt:   profile.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// RegisterRoutes registers user profile routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/profile", h.GetProfile)
	rg.PUT("/:id/profile", h.UpdateProfile)
}
