package expenses

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/splitta/splitta/pkg/splitta/activity"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/groups"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Handler handles expense-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new expenses handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateExpenseRequest represents the request to create an expense.
// Amount is a decimal string with at most two fractional digits.
type CreateExpenseRequest struct {
	GroupID     string `json:"group_id" binding:"required,uuid"`
	Description string `json:"description" binding:"required,max=255"`
	Amount      string `json:"amount" binding:"required"`
	CategoryID  *uint  `json:"category_id"`
	DueDate     string `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// nullableUint distinguishes an explicit JSON null from an absent field
// so an update can clear a reference.
type nullableUint struct {
	Set   bool
	Value *uint
}

func (n *nullableUint) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	return json.Unmarshal(b, &n.Value)
}

// nullableDate is a YYYY-MM-DD date that can be explicitly nulled.
type nullableDate struct {
	Set   bool
	Value *time.Time
}

func (n *nullableDate) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	n.Value = &t
	return nil
}

// UpdateExpenseRequest represents the request to update an expense.
// category_id and due_date accept an explicit null to clear the field;
// leaving a field out keeps its current value.
type UpdateExpenseRequest struct {
	Description string       `json:"description" binding:"omitempty,max=255"`
	Amount      string       `json:"amount"`
	CategoryID  nullableUint `json:"category_id"`
	DueDate     nullableDate `json:"due_date"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	CreatedByID uint   `json:"created_by_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	CategoryID  *uint  `json:"category_id,omitempty"`
	Category    string `json:"category,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func expenseToResponse(expense models.Expense) ExpenseResponse {
	resp := ExpenseResponse{
		ID:          expense.ID.String(),
		GroupID:     expense.GroupID.String(),
		CreatedByID: expense.CreatedByID,
		Description: expense.Description,
		Amount:      expense.Amount.StringFixed(2),
		CategoryID:  expense.CategoryID,
		CreatedAt:   expense.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   expense.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if expense.Category != nil {
		resp.Category = expense.Category.Name
	}
	if expense.DueDate != nil {
		resp.DueDate = expense.DueDate.Format(dateLayout)
	}
	return resp
}

// parseAmount parses a monetary amount from its decimal string form.
// At most two fractional digits are accepted; floats never enter the
// ledger.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if amount.Exponent() < -2 {
		return decimal.Decimal{}, &amountPrecisionError{}
	}
	return amount, nil
}

type amountPrecisionError struct{}

func (e *amountPrecisionError) Error() string {
	return "amount must have at most two decimal places"
}

// List returns expenses across the caller's groups, with optional filters
// @Summary List expenses
// @Description Get expenses in groups the caller belongs to. Filters: group (exact id), category (case-insensitive name), created_from/created_to (inclusive dates).
// @Tags expenses
// @Produce json
// @Param group query string false "Group ID"
// @Param category query string false "Category name"
// @Param created_from query string false "Inclusive lower bound date (YYYY-MM-DD)"
// @Param created_to query string false "Inclusive upper bound date (YYYY-MM-DD)"
// @Success 200 {array} ExpenseResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Security BearerAuth
// @Router /expenses [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	// Always scoped to the caller's groups; there is no widened view
	var groupIDs []uuid.UUID
	if err := h.db.Model(&models.GroupMember{}).Where("user_id = ?", userID).Pluck("group_id", &groupIDs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}
	if len(groupIDs) == 0 {
		c.JSON(http.StatusOK, []ExpenseResponse{})
		return
	}

	query := h.db.Preload("Category").Where("group_id IN ?", groupIDs).Order("created_at DESC")

	if groupParam := c.Query("group"); groupParam != "" {
		groupID, err := uuid.Parse(groupParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group filter"})
			return
		}
		query = query.Where("group_id = ?", groupID)
	}
	if category := c.Query("category"); category != "" {
		var categoryIDs []uint
		if err := h.db.Model(&models.Category{}).Where("LOWER(name) = ?", strings.ToLower(category)).Pluck("id", &categoryIDs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch categories"})
			return
		}
		if len(categoryIDs) == 0 {
			c.JSON(http.StatusOK, []ExpenseResponse{})
			return
		}
		query = query.Where("category_id IN ?", categoryIDs)
	}
	if from := c.Query("created_from"); from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid created_from filter"})
			return
		}
		query = query.Where("created_at >= ?", t)
	}
	if to := c.Query("created_to"); to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid created_to filter"})
			return
		}
		// Inclusive upper bound: the whole day counts
		query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
	}

	var expenses []models.Expense
	if err := query.Find(&expenses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch expenses"})
		return
	}

	responses := make([]ExpenseResponse, len(expenses))
	for i, e := range expenses {
		responses[i] = expenseToResponse(e)
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new expense in a group
// @Summary Create an expense
// @Description Log a new expense in a group the caller belongs to. Splits are created separately.
// @Tags expenses
// @Accept json
// @Produce json
// @Param request body CreateExpenseRequest true "Expense details"
// @Success 201 {object} ExpenseResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not a group member"
// @Security BearerAuth
// @Router /expenses [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID, _ := uuid.Parse(req.GroupID)
	if err := h.db.First(&models.Group{}, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if !groups.IsMember(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount: " + err.Error()})
		return
	}

	if req.CategoryID != nil {
		if err := h.db.First(&models.Category{}, *req.CategoryID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
			return
		}
	}

	expense := models.Expense{
		GroupID:     groupID,
		CreatedByID: userID,
		Description: req.Description,
		Amount:      amount,
		CategoryID:  req.CategoryID,
	}
	if req.DueDate != "" {
		due, _ := time.Parse(dateLayout, req.DueDate)
		expense.DueDate = &due
	}

	if err := h.db.Create(&expense).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create expense"})
		return
	}

	activity.Record(h.db, groupID, userID, activity.ActionExpenseCreated, gin.H{
		"expense_id":  expense.ID,
		"description": expense.Description,
		"amount":      expense.Amount.StringFixed(2),
	})
	activity.NotifyGroup(h.db, groupID, userID, "New expense: "+expense.Description, models.NotificationTypeExpense)

	h.db.Preload("Category").First(&expense, "id = ?", expense.ID)
	c.JSON(http.StatusCreated, expenseToResponse(expense))
}

// getScopedExpense loads an expense and enforces group membership.
// Returns (expense, true) on success; on failure the response has
// already been written.
func (h *Handler) getScopedExpense(c *gin.Context, userID uint) (models.Expense, bool) {
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expense ID"})
		return models.Expense{}, false
	}

	var expense models.Expense
	if err := h.db.Preload("Category").First(&expense, "id = ?", expenseID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Expense not found"})
		return models.Expense{}, false
	}

	if !groups.IsMember(h.db, userID, expense.GroupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return models.Expense{}, false
	}

	return expense, true
}

// Get returns a specific expense
// @Summary Get an expense
// @Description Get an expense (group members only)
// @Tags expenses
// @Produce json
// @Param id path string true "Expense ID"
// @Success 200 {object} ExpenseResponse
// @Failure 403 {object} map[string]string "Not a group member"
// @Failure 404 {object} map[string]string "Expense not found"
// @Security BearerAuth
// @Router /expenses/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	expense, ok := h.getScopedExpense(c, userID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, expenseToResponse(expense))
}

// Update updates an expense
// @Summary Update an expense
// @Description Update an expense's description, amount, category, or due date (group members only)
// @Tags expenses
// @Accept json
// @Produce json
// @Param id path string true "Expense ID"
// @Param request body UpdateExpenseRequest true "Updated expense details"
// @Success 200 {object} ExpenseResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not a group member"
// @Failure 404 {object} map[string]string "Expense not found"
// @Security BearerAuth
// @Router /expenses/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	expense, ok := h.getScopedExpense(c, userID)
	if !ok {
		return
	}

	var req UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Description != "" {
		expense.Description = req.Description
	}
	if req.Amount != "" {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount: " + err.Error()})
			return
		}
		expense.Amount = amount
	}
	if req.CategoryID.Set {
		if req.CategoryID.Value != nil {
			if err := h.db.First(&models.Category{}, *req.CategoryID.Value).Error; err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category"})
				return
			}
		}
		// Drop the preloaded association so Save writes the new (or
		// null) foreign key instead of restoring the old one
		expense.CategoryID = req.CategoryID.Value
		expense.Category = nil
	}
	if req.DueDate.Set {
		expense.DueDate = req.DueDate.Value
	}

	if err := h.db.Save(&expense).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update expense"})
		return
	}

	activity.Record(h.db, expense.GroupID, userID, activity.ActionExpenseUpdated, gin.H{"expense_id": expense.ID})

	h.db.Preload("Category").First(&expense, "id = ?", expense.ID)
	c.JSON(http.StatusOK, expenseToResponse(expense))
}

// Delete deletes an expense and its splits
// @Summary Delete an expense
// @Description Delete an expense and the splits it owns (group members only)
// @Tags expenses
// @Produce json
// @Param id path string true "Expense ID"
// @Success 200 {object} map[string]string "Expense deleted"
// @Failure 403 {object} map[string]string "Not a group member"
// @Failure 404 {object} map[string]string "Expense not found"
// @Security BearerAuth
// @Router /expenses/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	expense, ok := h.getScopedExpense(c, userID)
	if !ok {
		return
	}

	// The expense owns its splits; payments that referenced it keep the
	// settlement record with the link cleared
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var splitIDs []uint
		if err := tx.Model(&models.ExpenseSplit{}).Where("expense_id = ?", expense.ID).Pluck("id", &splitIDs).Error; err != nil {
			return err
		}
		if len(splitIDs) > 0 {
			if err := tx.Model(&models.Payment{}).Where("split_id IN ?", splitIDs).Update("split_id", nil).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseSplit{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Payment{}).Where("expense_id = ?", expense.ID).Update("expense_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&expense).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete expense"})
		return
	}

	activity.Record(h.db, expense.GroupID, userID, activity.ActionExpenseDeleted, gin.H{"expense_id": expense.ID})

	c.JSON(http.StatusOK, gin.H{"message": "Expense deleted"})
}

// RegisterRoutes registers expense routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
