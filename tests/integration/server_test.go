package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/splitta/splitta/pkg/splitta/activity"
	"github.com/splitta/splitta/pkg/splitta/auth"
	"github.com/splitta/splitta/pkg/splitta/categories"
	"github.com/splitta/splitta/pkg/splitta/expenses"
	"github.com/splitta/splitta/pkg/splitta/groups"
	"github.com/splitta/splitta/pkg/splitta/models"
	"github.com/splitta/splitta/pkg/splitta/payments"
	"github.com/splitta/splitta/pkg/splitta/users"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

// setupFullServer creates a Gin engine with all routes registered.
// This mirrors the setup in cmd/splitta-server/main.go
func setupFullServer(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "splitta",
			})
		})

		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		authHandler.RegisterRoutes(api.Group("/auth"))

		authRequired := auth.AuthMiddleware()

		usersHandler := users.NewHandler(db)
		usersHandler.RegisterRoutes(api.Group("/users", authRequired))

		groupsHandler := groups.NewHandler(db)
		groupsHandler.RegisterRoutes(api.Group("/groups", authRequired))
		groupsHandler.RegisterMemberRoutes(api.Group("/group-members", authRequired))

		expensesHandler := expenses.NewHandler(db)
		expensesHandler.RegisterRoutes(api.Group("/expenses", authRequired))
		expensesHandler.RegisterSplitRoutes(api.Group("/splits", authRequired))

		paymentsHandler := payments.NewHandler(db)
		paymentsHandler.RegisterRoutes(api.Group("/payments", authRequired))

		categoriesHandler := categories.NewHandler(db)
		categoriesHandler.RegisterRoutes(api.Group("/categories", authRequired))

		activityHandler := activity.NewHandler(db)
		activityHandler.RegisterRoutes(api.Group("", authRequired))
	}

	return r
}

// doJSON executes a request against the full router with an optional
// bearer token and decodes nothing; callers inspect the recorder.
func doJSON(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

// registerUser registers a user through the API and returns the token
// and user id from the auth response.
func registerUser(t *testing.T, router *gin.Engine, username string) (string, uint) {
	resp := doJSON(router, "POST", "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to register %s: %d %s", username, resp.Code, resp.Body.String())
	}
	var authResp struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	json.Unmarshal(resp.Body.Bytes(), &authResp)
	return authResp.Token, authResp.User.ID
}

// TestServerStartup verifies that all routes can be registered without conflicts
func TestServerStartup(t *testing.T) {
	db := setupTestDB(t)

	// This will panic if there are route conflicts
	router := setupFullServer(db)

	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

// TestHealthEndpoint verifies the health endpoint responds correctly
func TestHealthEndpoint(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	resp := doJSON(router, "GET", "/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}

	resp = doJSON(router, "GET", "/api/health", "", nil)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.Code)
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/groups"},
		{"POST", "/api/groups"},
		{"GET", "/api/expenses"},
		{"GET", "/api/splits"},
		{"GET", "/api/payments"},
		{"GET", "/api/categories"},
		{"GET", "/api/notifications"},
		{"GET", "/api/activity-logs"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := doJSON(router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/health", http.StatusOK},
		{"POST", "/api/auth/register", http.StatusBadRequest}, // Bad request (no body), but not 401
		{"POST", "/api/auth/login", http.StatusBadRequest},    // Bad request (no body), but not 401
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := doJSON(router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestExpenseSplitLifecycle walks the main flow end-to-end: a group is
// created, an expense recorded, a split against an outsider is refused
// until they are added to the group, and the owing user then sees
// exactly their share.
func TestExpenseSplitLifecycle(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	aliceToken, aliceID := registerUser(t, router, "alice")
	bobToken, bobID := registerUser(t, router, "bob")

	// Alice creates a group
	resp := doJSON(router, "POST", "/api/groups", aliceToken, map[string]string{"name": "Road Trip"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create group: %d %s", resp.Code, resp.Body.String())
	}
	var group struct {
		ID string `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &group)

	// Alice records an expense in the group
	resp = doJSON(router, "POST", "/api/expenses", aliceToken, map[string]string{
		"group_id":    group.ID,
		"description": "Gas",
		"amount":      "100.00",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to create expense: %d %s", resp.Code, resp.Body.String())
	}
	var expense struct {
		ID string `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &expense)

	// Splitting against bob fails while he is not a member
	splitBody := map[string]interface{}{
		"expense_id": expense.ID,
		"user_id":    bobID,
		"amount":     "50.00",
	}
	resp = doJSON(router, "POST", "/api/splits", aliceToken, splitBody)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403 splitting against a non-member, got %d: %s", resp.Code, resp.Body.String())
	}

	// Bob cannot see the expense either
	resp = doJSON(router, "GET", "/api/expenses/"+expense.ID, bobToken, nil)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-member expense read, got %d", resp.Code)
	}

	// Alice adds bob to the group
	resp = doJSON(router, "POST", "/api/group-members", aliceToken, map[string]interface{}{
		"group_id": group.ID,
		"user_id":  bobID,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to add member: %d %s", resp.Code, resp.Body.String())
	}

	// The same split now succeeds
	resp = doJSON(router, "POST", "/api/splits", aliceToken, splitBody)
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected split creation to succeed after membership, got %d: %s", resp.Code, resp.Body.String())
	}
	var split struct {
		ID uint `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &split)

	// Bob lists his splits and sees exactly one, for 50.00
	resp = doJSON(router, "GET", "/api/splits", bobToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to list splits: %d %s", resp.Code, resp.Body.String())
	}
	var splits []struct {
		ID        uint   `json:"id"`
		ExpenseID string `json:"expense_id"`
		Amount    string `json:"amount"`
		IsPaid    bool   `json:"is_paid"`
	}
	json.Unmarshal(resp.Body.Bytes(), &splits)
	if len(splits) != 1 {
		t.Fatalf("Expected 1 split, got %d", len(splits))
	}
	if splits[0].Amount != "50.00" {
		t.Errorf("Expected split amount 50.00, got %s", splits[0].Amount)
	}
	if splits[0].ExpenseID != expense.ID {
		t.Errorf("Expected split to reference expense %s, got %s", expense.ID, splits[0].ExpenseID)
	}

	// Bob records a settlement payment against his split
	resp = doJSON(router, "POST", "/api/payments", bobToken, map[string]interface{}{
		"to_user_id": aliceID,
		"group_id":   group.ID,
		"split_id":   split.ID,
		"expense_id": expense.ID,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Failed to record payment: %d %s", resp.Code, resp.Body.String())
	}
	var payment struct {
		Amount string `json:"amount"`
	}
	json.Unmarshal(resp.Body.Bytes(), &payment)
	if payment.Amount != "50.00" {
		t.Errorf("Expected payment to default to the split amount 50.00, got %s", payment.Amount)
	}

	// The payment does not mark the split paid; bob does that explicitly
	resp = doJSON(router, "GET", "/api/splits", bobToken, nil)
	json.Unmarshal(resp.Body.Bytes(), &splits)
	if splits[0].IsPaid {
		t.Error("Expected split to remain unpaid after payment")
	}
	resp = doJSON(router, "PUT", fmt.Sprintf("/api/splits/%d", split.ID), bobToken, map[string]interface{}{"is_paid": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to mark split paid: %d %s", resp.Code, resp.Body.String())
	}
}

// TestActivityLogScenario verifies that group actions accumulate in the
// activity log, newest first, and that the log is member-gated.
func TestActivityLogScenario(t *testing.T) {
	db := setupTestDB(t)
	router := setupFullServer(db)

	aliceToken, _ := registerUser(t, router, "alice")
	bobToken, bobID := registerUser(t, router, "bob")
	carolToken, _ := registerUser(t, router, "carol")

	resp := doJSON(router, "POST", "/api/groups", aliceToken, map[string]string{"name": "Flat 4B"})
	var group struct {
		ID string `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &group)

	doJSON(router, "POST", "/api/group-members", aliceToken, map[string]interface{}{
		"group_id": group.ID,
		"user_id":  bobID,
	})
	doJSON(router, "POST", "/api/expenses", aliceToken, map[string]string{
		"group_id":    group.ID,
		"description": "Rent",
		"amount":      "1200.00",
	})

	// Requesting the log without naming a group is a validation error
	resp = doJSON(router, "GET", "/api/activity-logs", aliceToken, nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without a group parameter, got %d", resp.Code)
	}

	// Non-members cannot read the log
	resp = doJSON(router, "GET", "/api/activity-logs?group="+group.ID, carolToken, nil)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-member, got %d", resp.Code)
	}

	// Members see every recorded action, newest first
	resp = doJSON(router, "GET", "/api/activity-logs?group="+group.ID, bobToken, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Failed to list activity: %d %s", resp.Code, resp.Body.String())
	}
	var entries []struct {
		Action string `json:"action"`
		User   string `json:"user"`
	}
	json.Unmarshal(resp.Body.Bytes(), &entries)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 activity entries, got %d", len(entries))
	}
	expected := []string{"expense created", "member added", "group created"}
	for i, action := range expected {
		if entries[i].Action != action {
			t.Errorf("Expected entry %d to be %q, got %q", i, action, entries[i].Action)
		}
	}

	// Bob was notified about being added to the group
	resp = doJSON(router, "GET", "/api/notifications", bobToken, nil)
	var notifications []struct {
		Type   string `json:"type"`
		IsRead bool   `json:"is_read"`
	}
	json.Unmarshal(resp.Body.Bytes(), &notifications)
	if len(notifications) == 0 {
		t.Fatal("Expected bob to have notifications")
	}
}
