package payments

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	user := models.User{Username: username, Email: username + "@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func createTestGroup(t *testing.T, db *gorm.DB, name string, members ...models.User) models.Group {
	group := models.Group{Name: name, CreatedByID: members[0].ID}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}
	for _, u := range members {
		if err := db.Create(&models.GroupMember{GroupID: group.ID, UserID: u.ID}).Error; err != nil {
			t.Fatalf("Failed to add test member: %v", err)
		}
	}
	return group
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/payments", auth.AuthMiddleware()))
	return r
}

func doJSON(router *gin.Engine, method, path string, body interface{}, user models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	token, _ := auth.GenerateToken(user.ID, user.Username, user.Email)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRecordPayment(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, "Trip", alice, bob)

	resp := doJSON(router, "POST", "/payments", RecordPaymentRequest{
		ToUserID: bob.ID,
		GroupID:  group.ID.String(),
		Amount:   "25.00",
		Note:     "dinner",
	}, alice)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response PaymentResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.FromUserID != alice.ID || response.ToUserID != bob.ID {
		t.Errorf("Unexpected payer/recipient: %d -> %d", response.FromUserID, response.ToUserID)
	}
	if response.Amount != "25.00" {
		t.Errorf("Expected amount '25.00', got %s", response.Amount)
	}
	if response.SettledAt == "" {
		t.Error("Expected settled_at to be set")
	}
}

func TestRecordPaymentNonMemberForbidden(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	outsider := createTestUser(t, db, "carol")
	group := createTestGroup(t, db, "Trip", alice, bob)

	resp := doJSON(router, "POST", "/payments", RecordPaymentRequest{
		ToUserID: bob.ID,
		GroupID:  group.ID.String(),
		Amount:   "25.00",
	}, outsider)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-member payer, got %d", resp.Code)
	}

	resp = doJSON(router, "POST", "/payments", RecordPaymentRequest{
		ToUserID: outsider.ID,
		GroupID:  group.ID.String(),
		Amount:   "25.00",
	}, alice)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-member recipient, got %d", resp.Code)
	}
}

func TestRecordPaymentDoesNotMarkSplitPaid(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, "Trip", alice, bob)

	expense := models.Expense{
		GroupID:     group.ID,
		CreatedByID: alice.ID,
		Description: "Hotel",
		Amount:      decimal.RequireFromString("100.00"),
	}
	db.Create(&expense)
	split := models.ExpenseSplit{ExpenseID: expense.ID, UserID: bob.ID, Amount: decimal.RequireFromString("50.00")}
	db.Create(&split)

	resp := doJSON(router, "POST", "/payments", RecordPaymentRequest{
		ToUserID: alice.ID,
		GroupID:  group.ID.String(),
		SplitID:  &split.ID,
	}, bob)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response PaymentResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	// A linked payment without an explicit amount takes the split amount
	if response.Amount != "50.00" {
		t.Errorf("Expected amount '50.00', got %s", response.Amount)
	}

	// The split stays unpaid; marking it paid is a separate update
	var reloaded models.ExpenseSplit
	db.First(&reloaded, split.ID)
	if reloaded.IsPaid {
		t.Error("Recording a payment must not mark the split paid")
	}
}

func TestListPaymentsSentAndReceived(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	group := createTestGroup(t, db, "Trip", alice, bob, carol)

	doJSON(router, "POST", "/payments", RecordPaymentRequest{ToUserID: bob.ID, GroupID: group.ID.String(), Amount: "10.00"}, alice)
	doJSON(router, "POST", "/payments", RecordPaymentRequest{ToUserID: alice.ID, GroupID: group.ID.String(), Amount: "5.00"}, carol)
	doJSON(router, "POST", "/payments", RecordPaymentRequest{ToUserID: carol.ID, GroupID: group.ID.String(), Amount: "7.00"}, bob)

	resp := doJSON(router, "GET", "/payments", nil, alice)
	var payments []PaymentResponse
	json.Unmarshal(resp.Body.Bytes(), &payments)

	// alice sent one and received one; the bob->carol payment is not hers
	if len(payments) != 2 {
		t.Fatalf("Expected 2 payments for alice, got %d", len(payments))
	}
	for _, p := range payments {
		if p.FromUserID != alice.ID && p.ToUserID != alice.ID {
			t.Errorf("Payment %d does not involve alice", p.ID)
		}
	}
}
