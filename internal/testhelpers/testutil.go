package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pageza/cantine/backend/internal/database"
	"github.com/pageza/cantine/backend/internal/models"
	"github.com/pageza/cantine/backend/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the password of every user created by CreateTestUser.
const TestPassword = "password123"

// SetupTestDB creates an isolated in-memory SQLite database with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: would see its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db, zap.NewNop()))
	return db
}

// FixedClock returns a clock stopped at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Date builds a UTC-midnight date, the form stored in date columns.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestUser creates an active account with a profile of role.
// The password is TestPassword.
func CreateTestUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     username,
		PasswordHash: string(hash),
		IsStaff:      role == models.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	profile := &models.UserProfile{UserID: user.ID, Role: role}
	require.NoError(t, db.Create(profile).Error)
	user.Profile = profile
	return user
}

func CreateTestClass(t *testing.T, db *gorm.DB, name string) *models.Class {
	t.Helper()
	class := &models.Class{Name: name, Level: "Secondary"}
	require.NoError(t, db.Create(class).Error)
	return class
}

// CreateTestStudent creates an active student of class enrolled on 2024-01-01, without subscription.
func CreateTestStudent(t *testing.T, db *gorm.DB, class *models.Class, matricule, firstName, lastName string) *models.Student {
	t.Helper()
	st := &models.Student{
		Matricule:  matricule,
		FirstName:  firstName,
		LastName:   lastName,
		ClassID:    class.ID,
		EnrolledOn: Date(2024, time.January, 1),
		Active:     true,
	}
	require.NoError(t, db.Create(st).Error)
	st.Class = class
	return st
}

func CreateTestSubscription(t *testing.T, db *gorm.DB, studentID uint, start time.Time, balance string) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		StudentID:  studentID,
		Status:     models.SubscriptionActive,
		StartDate:  start,
		Balance:    decimal.RequireFromString(balance),
		MonthlyFee: decimal.Zero,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func CreateTestMenu(t *testing.T, db *gorm.DB, date time.Time, mainCourse string) *models.DailyMenu {
	t.Helper()
	menu := &models.DailyMenu{Date: date, MainCourse: mainCourse}
	require.NoError(t, db.Create(menu).Error)
	return menu
}

func CreateTestAttendance(t *testing.T, db *gorm.DB, studentID uint, date time.Time, present bool) *models.Attendance {
	t.Helper()
	rec := &models.Attendance{StudentID: studentID, Date: date, Meal: models.MealLunch, Present: present}
	require.NoError(t, db.Create(rec).Error)
	return rec
}

// MockTokenValidator is a mock implementation of the token validator
type MockTokenValidator struct {
	Claims *types.TokenClaims
	Error  error
}

func (m *MockTokenValidator) ValidateToken(token string) (*types.TokenClaims, error) {
	if m.Error != nil {
		return nil, m.Error
	}
	return m.Claims, nil
}

func JSONMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// PerformRequest sends a request through handler and returns the recorded response.
func PerformRequest(handler http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// PerformJSON sends v as a JSON body.
func PerformJSON(t *testing.T, handler http.Handler, method, path string, v interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	h := map[string]string{"Content-Type": "application/json"}
	for k, val := range headers {
		h[k] = val
	}
	return PerformRequest(handler, method, path, bytes.NewReader(JSONMarshal(t, v)), h)
}
