package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/repositories/memory"
	"github.com/yigit/earlyalert/internal/config"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Field   string          `json:"field"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testApp struct {
	t      *testing.T
	router *gin.Engine
	deps   *Dependencies
	store  *memory.Store

	adminToken   string
	advisorToken string
	studentToken string

	advisorID    int64
	studentID    int64
	otherStudent int64
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.JWT.Secret = "test-secret-key-with-enough-length"
	cfg.JWT.Issuer = "earlyalert-test"
	cfg.Risk.CriticalThreshold = 0.70
	cfg.Risk.HighThreshold = 0.50
	cfg.Risk.MediumThreshold = 0.30
	cfg.Followups.DefaultWindowDays = 7
	return cfg
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx := context.Background()
	store := memory.New()
	repos := store.Repos()

	adminID, err := repos.Users.Create(ctx, &models.User{Email: "admin@example.edu", FirstName: "Ada", LastName: "Admin", Role: models.RoleAdmin, IsActive: true})
	require.NoError(t, err)
	advisorID, err := repos.Users.Create(ctx, &models.User{Email: "advisor@example.edu", FirstName: "Jane", LastName: "Doe", Role: models.RoleAdvisor, IsActive: true})
	require.NoError(t, err)
	studentUserID, err := repos.Users.Create(ctx, &models.User{Email: "ana@example.edu", FirstName: "Ana", LastName: "Diaz", Role: models.RoleStudent, IsActive: true})
	require.NoError(t, err)

	require.NoError(t, repos.Terms.Upsert(ctx, &models.Term{
		ID:        "2024F",
		Name:      "Fall 2024",
		StartDate: time.Date(2024, 8, 26, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
	}))

	studentID, err := repos.Students.Create(ctx, &models.Student{
		BannerID: "B00000042", FirstName: "Ana", LastName: "Diaz", Email: "ana@example.edu",
		EnrollmentStatus: models.EnrollmentActive, PrimaryAdvisorID: &advisorID, UserID: &studentUserID,
	})
	require.NoError(t, err)
	otherStudent, err := repos.Students.Create(ctx, &models.Student{
		BannerID: "B00000043", FirstName: "Bo", LastName: "Eng",
		EnrollmentStatus: models.EnrollmentActive, PrimaryAdvisorID: &advisorID,
	})
	require.NoError(t, err)

	cfg := testConfig()
	deps := BuildDependencies(cfg, store, nil, nil, nil, zerolog.Nop())
	router := SetupRouter(cfg, deps, zerolog.Nop())

	token := func(id int64, email string, role models.RoleType) string {
		tok, err := deps.JWTService.GenerateToken(id, email, string(role))
		require.NoError(t, err)
		return tok
	}

	return &testApp{
		t:            t,
		router:       router,
		deps:         deps,
		store:        store,
		adminToken:   token(adminID, "admin@example.edu", models.RoleAdmin),
		advisorToken: token(advisorID, "advisor@example.edu", models.RoleAdvisor),
		studentToken: token(studentUserID, "ana@example.edu", models.RoleStudent),
		advisorID:    advisorID,
		studentID:    studentID,
		otherStudent: otherStudent,
	}
}

func (a *testApp) do(method, path, token string, body interface{}) (int, apiEnvelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env apiEnvelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func createdID(t *testing.T, env apiEnvelope) int64 {
	t.Helper()
	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotZero(t, out.ID)
	return out.ID
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_RequiresToken(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(http.MethodGet, "/api/v1/students", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Error)
	assert.False(t, env.Success)
}

func TestRouter_AssessmentLifecycle(t *testing.T) {
	app := newTestApp(t)
	path := fmt.Sprintf("/api/v1/students/%d/assessments", app.studentID)

	scores := map[string]float64{"overall": 0.82, "academic": 0.9, "engagement": 0.7, "financial": 0.6, "wellness": 0.5}
	body := map[string]interface{}{"termId": "2024F", "scores": scores, "modelVersion": "v2.1"}

	// advisors read assessments but do not record them
	code, env := app.do(http.MethodPost, path, app.advisorToken, body)
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "AUTH_009", env.Error.Code)

	code, env = app.do(http.MethodPost, path, app.adminToken, body)
	require.Equal(t, http.StatusCreated, code)
	id := createdID(t, env)

	code, env = app.do(http.MethodGet, path+"/current?termId=2024F", app.advisorToken, nil)
	require.Equal(t, http.StatusOK, code)
	var current models.RiskAssessment
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, id, current.ID)
	assert.Equal(t, models.RiskCritical, current.Category)
	assert.True(t, current.IsCurrent)

	// the jump into Critical alerts the primary advisor
	unread, err := app.store.Repos().Notifications.ListUnread(context.Background(), app.advisorID, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, unread)

	scores["overall"] = 1.5
	code, env = app.do(http.MethodPost, path, app.adminToken, body)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VAL_001", env.Error.Code)
	assert.Equal(t, "scores.overall", env.Error.Field)
}

func TestRouter_InterventionTransitions(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(http.MethodPost, "/api/v1/interventions", app.advisorToken, map[string]interface{}{
		"studentId": app.studentID,
		"advisorId": app.advisorID,
		"title":     "Academic check-in",
		"priority":  "High",
	})
	require.Equal(t, http.StatusCreated, code)
	id := createdID(t, env)
	base := fmt.Sprintf("/api/v1/interventions/%d", id)

	code, env = app.do(http.MethodPost, base+"/transitions", app.advisorToken, map[string]interface{}{"status": "Completed"})
	assert.Equal(t, http.StatusConflict, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RES_005", env.Error.Code)
	var details struct {
		Current string   `json:"current"`
		Allowed []string `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.Equal(t, "Scheduled", details.Current)
	assert.ElementsMatch(t, []string{"In Progress", "Cancelled", "No Show"}, details.Allowed)

	code, env = app.do(http.MethodPost, base+"/transitions", app.advisorToken, map[string]interface{}{"status": "In Progress"})
	require.Equal(t, http.StatusOK, code)
	var got models.Intervention
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.StatusInProgress, got.Status)

	// the student sees their own interventions but nobody else's
	code, _ = app.do(http.MethodGet, fmt.Sprintf("/api/v1/students/%d/interventions", app.studentID), app.studentToken, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = app.do(http.MethodGet, fmt.Sprintf("/api/v1/students/%d/interventions", app.otherStudent), app.studentToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRouter_AdminOnlyRoutes(t *testing.T) {
	app := newTestApp(t)

	code, _ := app.do(http.MethodGet, "/api/v1/audit", app.advisorToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := app.do(http.MethodPost, "/api/v1/users", app.adminToken, map[string]string{
		"email": "new.advisor@example.edu", "firstName": "Ned", "lastName": "Vo", "role": "advisor",
	})
	require.Equal(t, http.StatusCreated, code)
	userID := createdID(t, env)

	code, env = app.do(http.MethodGet, "/api/v1/audit?entityType=user", app.adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items []models.AuditLogEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.NotEmpty(t, page.Items)
	assert.Equal(t, userID, page.Items[0].EntityID)
}

func TestRouter_BindingErrorsNameJSONFields(t *testing.T) {
	app := newTestApp(t)

	code, env := app.do(http.MethodPost, "/api/v1/students", app.adminToken, map[string]string{"firstName": "A", "lastName": "B"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VAL_001", env.Error.Code)
	assert.Equal(t, "bannerId", env.Error.Field)
}
