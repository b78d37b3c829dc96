package categories

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// Handler handles category-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new categories handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateCategoryRequest represents the request to create a category
type CreateCategoryRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// List returns the caller's own categories
// @Summary List categories
// @Description Get the categories created by the current user
// @Tags categories
// @Produce json
// @Success 200 {array} CategoryResponse
// @Security BearerAuth
// @Router /categories [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var categories []models.Category
	if err := h.db.Where("created_by_id = ?", userID).Order("name").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
		return
	}

	responses := make([]CategoryResponse, len(categories))
	for i, cat := range categories {
		responses[i] = CategoryResponse{ID: cat.ID, Name: cat.Name}
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new category owned by the caller
// @Summary Create a category
// @Description Create an expense category owned by the current user
// @Tags categories
// @Accept json
// @Produce json
// @Param request body CreateCategoryRequest true "Category details"
// @Success 201 {object} CategoryResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /categories [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := models.Category{
		Name:        req.Name,
		CreatedByID: userID,
	}
	if err := h.db.Create(&category).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category"})
		return
	}

	c.JSON(http.StatusCreated, CategoryResponse{ID: category.ID, Name: category.Name})
}

// Delete deletes one of the caller's categories. Dependent expenses keep
// their rows with the category reference cleared.
// @Summary Delete a category
// @Description Delete a category; expenses that referenced it get a null category
// @Tags categories
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} map[string]string "Category deleted"
// @Failure 404 {object} map[string]string "Category not found"
// @Security BearerAuth
// @Router /categories/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	categoryID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	var category models.Category
	if err := h.db.Where("id = ? AND created_by_id = ?", categoryID, userID).First(&category).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	// Set-null on delete: soft deletes don't fire DB-level referential
	// actions, so the expense references are cleared explicitly
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Expense{}).Where("category_id = ?", category.ID).Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// RegisterRoutes registers category routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.DELETE("/:id", h.Delete)
}
