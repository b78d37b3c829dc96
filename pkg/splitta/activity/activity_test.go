package activity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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
	handler.RegisterRoutes(r.Group("", auth.AuthMiddleware()))
	return r
}

func doGet(router *gin.Engine, path string, user models.User) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	token, _ := auth.GenerateToken(user.ID, user.Username, user.Email)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListActivityRequiresGroupParam(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")

	resp := doGet(router, "/activity-logs", alice)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without group param, got %d", resp.Code)
	}
}

func TestListActivityNonMemberForbidden(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	group := createTestGroup(t, db, "Trip", alice)

	resp := doGet(router, "/activity-logs?group="+group.ID.String(), bob)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-member, got %d", resp.Code)
	}
}

func TestListActivityNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	group := createTestGroup(t, db, "Trip", alice)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []string{"first", "second", "third"} {
		entry := models.ActivityLog{GroupID: group.ID, UserID: alice.ID, Action: action}
		db.Create(&entry)
		db.Model(&entry).Update("timestamp", base.Add(time.Duration(i)*time.Minute))
	}

	resp := doGet(router, "/activity-logs?group="+group.ID.String(), alice)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var entries []ActivityResponse
	json.Unmarshal(resp.Body.Bytes(), &entries)
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Action != "third" || entries[2].Action != "first" {
		t.Errorf("Expected newest-first ordering, got %s, %s, %s", entries[0].Action, entries[1].Action, entries[2].Action)
	}
}

func TestListActivityResolvesDisplayName(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	group := createTestGroup(t, db, "Trip", alice)

	Record(db, group.ID, alice.ID, ActionGroupCreated, map[string]string{"name": "Trip"})

	resp := doGet(router, "/activity-logs?group="+group.ID.String(), alice)
	var entries []ActivityResponse
	json.Unmarshal(resp.Body.Bytes(), &entries)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].User != "alice" {
		t.Errorf("Expected username fallback 'alice', got %s", entries[0].User)
	}

	// A profile display name takes precedence
	db.Create(&models.UserProfile{UserID: alice.ID, DisplayName: "Alice W."})
	resp = doGet(router, "/activity-logs?group="+group.ID.String(), alice)
	json.Unmarshal(resp.Body.Bytes(), &entries)
	if entries[0].User != "Alice W." {
		t.Errorf("Expected display name 'Alice W.', got %s", entries[0].User)
	}
}

func TestListNotificationsOwnOnlyNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	Notify(db, alice.ID, "first", models.NotificationTypeGeneral)
	Notify(db, alice.ID, "second", models.NotificationTypeExpense)
	Notify(db, bob.ID, "not alice's", models.NotificationTypeGeneral)

	resp := doGet(router, "/notifications", alice)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var notifications []NotificationResponse
	json.Unmarshal(resp.Body.Bytes(), &notifications)
	if len(notifications) != 2 {
		t.Fatalf("Expected 2 notifications for alice, got %d", len(notifications))
	}
	if notifications[0].Message != "second" {
		t.Errorf("Expected newest first, got %s", notifications[0].Message)
	}
}

func TestRecordSwallowsFailures(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice")
	group := createTestGroup(t, db, "Trip", alice)

	// A payload that cannot be marshalled must not panic or fail
	Record(db, group.ID, alice.ID, ActionExpenseCreated, map[string]interface{}{"bad": func() {}})

	var count int64
	db.Model(&models.ActivityLog{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected the entry to be recorded without payload, got %d entries", count)
	}
}
