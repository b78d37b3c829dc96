package payments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/splitta/splitta/pkg/splitta/activity"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/groups"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/gorm"
)

// Handler handles payment-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new payments handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RecordPaymentRequest represents the request to record a settlement.
// The caller is always the payer. The split and expense links are
// optional; recording a payment never marks the linked split paid.
type RecordPaymentRequest struct {
	ToUserID  uint   `json:"to_user_id" binding:"required"`
	GroupID   string `json:"group_id" binding:"required,uuid"`
	Amount    string `json:"amount"`
	SplitID   *uint  `json:"split_id"`
	ExpenseID string `json:"expense_id" binding:"omitempty,uuid"`
	Note      string `json:"note"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID         uint   `json:"id"`
	FromUserID uint   `json:"from_user_id"`
	ToUserID   uint   `json:"to_user_id"`
	GroupID    string `json:"group_id"`
	Amount     string `json:"amount"`
	SplitID    *uint  `json:"split_id,omitempty"`
	ExpenseID  string `json:"expense_id,omitempty"`
	Note       string `json:"note,omitempty"`
	SettledAt  string `json:"settled_at"`
}

func paymentToResponse(p models.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:         p.ID,
		FromUserID: p.FromUserID,
		ToUserID:   p.ToUserID,
		GroupID:    p.GroupID.String(),
		Amount:     p.Amount.StringFixed(2),
		SplitID:    p.SplitID,
		Note:       p.Note,
		SettledAt:  p.SettledAt.Format("2006-01-02T15:04:05Z"),
	}
	if p.ExpenseID != nil {
		resp.ExpenseID = p.ExpenseID.String()
	}
	return resp
}

// List returns payments where the caller is sender or receiver
// @Summary List own payments
// @Description Get payments the current user sent or received
// @Tags payments
// @Produce json
// @Success 200 {array} PaymentResponse
// @Security BearerAuth
// @Router /payments [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var payments []models.Payment
	if err := h.db.Where("from_user_id = ? OR to_user_id = ?", userID, userID).Order("settled_at DESC, id DESC").Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	responses := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		responses[i] = paymentToResponse(p)
	}

	c.JSON(http.StatusOK, responses)
}

// Record appends an immutable settlement record
// @Summary Record a payment
// @Description Record that the current user paid another group member. Does not mark any split paid; that is a separate split update.
// @Tags payments
// @Accept json
// @Produce json
// @Param request body RecordPaymentRequest true "Payment details"
// @Success 201 {object} PaymentResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Payer or recipient not a group member"
// @Failure 404 {object} map[string]string "Group, split, or expense not found"
// @Security BearerAuth
// @Router /payments [post]
func (h *Handler) Record(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	groupID, _ := uuid.Parse(req.GroupID)
	var group models.Group
	if err := h.db.First(&group, "id = ?", groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if !groups.IsMember(h.db, userID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a group member"})
		return
	}
	if !groups.IsMember(h.db, req.ToUserID, groupID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Recipient is not a group member"})
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil || parsed.Exponent() < -2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		amount = parsed
	}

	payment := models.Payment{
		FromUserID: userID,
		ToUserID:   req.ToUserID,
		GroupID:    groupID,
		Amount:     amount,
		Note:       req.Note,
	}

	if req.SplitID != nil {
		var split models.ExpenseSplit
		if err := h.db.First(&split, *req.SplitID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Split not found"})
			return
		}
		payment.SplitID = req.SplitID
		if amount.IsZero() {
			payment.Amount = split.Amount
		}
	}
	if req.ExpenseID != "" {
		expenseID, _ := uuid.Parse(req.ExpenseID)
		if err := h.db.First(&models.Expense{}, "id = ?", expenseID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Expense not found"})
			return
		}
		payment.ExpenseID = &expenseID
	}

	if err := h.db.Create(&payment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	activity.Record(h.db, groupID, userID, activity.ActionPaymentRecorded, gin.H{
		"payment_id": payment.ID,
		"to_user_id": payment.ToUserID,
		"amount":     payment.Amount.StringFixed(2),
	})
	activity.Notify(h.db, req.ToUserID, "Payment recorded in group "+group.Name, models.NotificationTypePayment)

	c.JSON(http.StatusCreated, paymentToResponse(payment))
}

// RegisterRoutes registers payment routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Record)
}
