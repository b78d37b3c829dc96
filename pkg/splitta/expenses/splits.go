package expenses

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/groups"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// CreateSplitRequest represents the request to create a split
type CreateSplitRequest struct {
	ExpenseID string `json:"expense_id" binding:"required,uuid"`
	UserID    uint   `json:"user_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
}

// UpdateSplitRequest represents the request to update a split.
// Setting is_paid here is the manual follow-up after recording a
// payment; payments never flip the flag themselves.
type UpdateSplitRequest struct {
	Amount string `json:"amount"`
	IsPaid *bool  `json:"is_paid"`
}

// SplitResponse represents a split in API responses
type SplitResponse struct {
	ID        uint   `json:"id"`
	ExpenseID string `json:"expense_id"`
	UserID    uint   `json:"user_id"`
	Amount    string `json:"amount"`
	IsPaid    bool   `json:"is_paid"`
}

func splitToResponse(split models.ExpenseSplit) SplitResponse {
	return SplitResponse{
		ID:        split.ID,
		ExpenseID: split.ExpenseID.String(),
		UserID:    split.UserID,
		Amount:    split.Amount.StringFixed(2),
		IsPaid:    split.IsPaid,
	}
}

// strictSplitTotal reports whether split mutations must keep the sum of
// an expense's splits within the expense amount. Off by default: the
// ledger records splits as entered and partial splitting is allowed.
func strictSplitTotal() bool {
	return os.Getenv("SPLITTA_STRICT_SPLIT_TOTAL") == "true"
}

// splitTotalExceeds reports whether the expense's splits would sum past
// its amount, with amount replacing the current value of split excludeID
// (0 for a new split).
func (h *Handler) splitTotalExceeds(expense models.Expense, excludeID uint, amount decimal.Decimal) bool {
	var splits []models.ExpenseSplit
	if err := h.db.Where("expense_id = ?", expense.ID).Find(&splits).Error; err != nil {
		return false
	}
	total := amount
	for _, s := range splits {
		if s.ID == excludeID {
			continue
		}
		total = total.Add(s.Amount)
	}
	return total.GreaterThan(expense.Amount)
}

// ListSplits returns splits where the caller is the owing user
// @Summary List own splits
// @Description Get the splits where the current user is the owing party
// @Tags splits
// @Produce json
// @Success 200 {array} SplitResponse
// @Security BearerAuth
// @Router /splits [get]
func (h *Handler) ListSplits(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var splits []models.ExpenseSplit
	if err := h.db.Where("user_id = ?", userID).Find(&splits).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch splits"})
		return
	}

	responses := make([]SplitResponse, len(splits))
	for i, s := range splits {
		responses[i] = splitToResponse(s)
	}

	c.JSON(http.StatusOK, responses)
}

// CreateSplit creates a split on an expense
// @Summary Create a split
// @Description Assign a member's owed share of an expense. The owing user must be a member of the expense's group.
// @Tags splits
// @Accept json
// @Produce json
// @Param request body CreateSplitRequest true "Split details"
// @Success 201 {object} SplitResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Owing user not a group member"
// @Failure 404 {object} map[string]string "Expense not found"
// @Failure 409 {object} map[string]string "Split already exists"
// @Security BearerAuth
// @Router /splits [post]
func (h *Handler) CreateSplit(c *gin.Context) {
	callerID, _ := auth.GetUserID(c)

	var req CreateSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expenseID, _ := uuid.Parse(req.ExpenseID)
	var expense models.Expense
	if err := h.db.First(&expense, "id = ?", expenseID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Expense not found"})
		return
	}

	// The caller needs visibility of the expense, and the owing user
	// must be on the group's roster
	if !groups.IsMember(h.db, callerID, expense.GroupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}
	if !groups.IsMember(h.db, req.UserID, expense.GroupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is not a group member"})
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount: " + err.Error()})
		return
	}

	if strictSplitTotal() && h.splitTotalExceeds(expense, 0, amount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Splits would exceed the expense amount"})
		return
	}

	// Check for an existing split for this (expense, user) pair
	if err := h.db.Where("expense_id = ? AND user_id = ?", expenseID, req.UserID).First(&models.ExpenseSplit{}).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Split already exists for this user"})
		return
	}

	split := models.ExpenseSplit{
		ExpenseID: expenseID,
		UserID:    req.UserID,
		Amount:    amount,
	}

	// The unique (expense, user) index is the authoritative guard
	// against concurrent duplicate inserts
	if err := h.db.Create(&split).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Split already exists for this user"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create split"})
		return
	}

	c.JSON(http.StatusCreated, splitToResponse(split))
}

// getOwnedSplit loads a split and enforces that the caller is the owing
// user or the expense's creator.
func (h *Handler) getOwnedSplit(c *gin.Context, callerID uint) (models.ExpenseSplit, bool) {
	splitID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid split ID"})
		return models.ExpenseSplit{}, false
	}

	var split models.ExpenseSplit
	if err := h.db.Preload("Expense").First(&split, splitID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Split not found"})
		return models.ExpenseSplit{}, false
	}

	if callerID != split.UserID && callerID != split.Expense.CreatedByID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return models.ExpenseSplit{}, false
	}

	return split, true
}

// GetSplit returns a specific split (owing user or expense creator only)
// @Summary Get a split
// @Description Get a split; only the owing user or the expense's creator may read it
// @Tags splits
// @Produce json
// @Param id path int true "Split ID"
// @Success 200 {object} SplitResponse
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Split not found"
// @Security BearerAuth
// @Router /splits/{id} [get]
func (h *Handler) GetSplit(c *gin.Context) {
	callerID, _ := auth.GetUserID(c)

	split, ok := h.getOwnedSplit(c, callerID)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, splitToResponse(split))
}

// UpdateSplit updates a split's amount or paid flag
// @Summary Update a split
// @Description Update a split's amount or is_paid flag; only the owing user or the expense's creator may do so
// @Tags splits
// @Accept json
// @Produce json
// @Param id path int true "Split ID"
// @Param request body UpdateSplitRequest true "Updated split"
// @Success 200 {object} SplitResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Split not found"
// @Security BearerAuth
// @Router /splits/{id} [put]
func (h *Handler) UpdateSplit(c *gin.Context) {
	callerID, _ := auth.GetUserID(c)

	split, ok := h.getOwnedSplit(c, callerID)
	if !ok {
		return
	}

	var req UpdateSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Amount != "" {
		amount, err := parseAmount(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount: " + err.Error()})
			return
		}
		if strictSplitTotal() && h.splitTotalExceeds(split.Expense, split.ID, amount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Splits would exceed the expense amount"})
			return
		}
		split.Amount = amount
	}
	if req.IsPaid != nil {
		split.IsPaid = *req.IsPaid
	}

	if err := h.db.Save(&split).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update split"})
		return
	}

	c.JSON(http.StatusOK, splitToResponse(split))
}

// DeleteSplit deletes a split (owing user or expense creator only)
// @Summary Delete a split
// @Description Delete a split; only the owing user or the expense's creator may do so
// @Tags splits
// @Produce json
// @Param id path int true "Split ID"
// @Success 200 {object} map[string]string "Split deleted"
// @Failure 403 {object} map[string]string "Access denied"
// @Failure 404 {object} map[string]string "Split not found"
// @Security BearerAuth
// @Router /splits/{id} [delete]
func (h *Handler) DeleteSplit(c *gin.Context) {
	callerID, _ := auth.GetUserID(c)

	split, ok := h.getOwnedSplit(c, callerID)
	if !ok {
		return
	}

	// Payments keep their settlement record with the split link cleared
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).Where("split_id = ?", split.ID).Update("split_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&split).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete split"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Split deleted"})
}

// RegisterSplitRoutes registers the splits resource routes
func (h *Handler) RegisterSplitRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListSplits)
	rg.POST("", h.CreateSplit)
	rg.GET("/:id", h.GetSplit)
	rg.PUT("/:id", h.UpdateSplit)
	rg.DELETE("/:id", h.DeleteSplit)
}
