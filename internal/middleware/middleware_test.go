package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/earlyalert/internal/app/models"
	"github.com/yigit/earlyalert/internal/app/models/dto"
	"github.com/yigit/earlyalert/internal/pkg/apperrors"
	pkgAuth "github.com/yigit/earlyalert/internal/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Success bool            `json:"success"`
	Error   dto.ErrorDetail `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newJWT(exp time.Duration) *pkgAuth.JWTService {
	return pkgAuth.NewJWTService(pkgAuth.JWTConfig{SecretKey: "test-secret", TokenIssuer: "earlyalert", AccessTokenExp: exp})
}

func whoAmIRouter(jwt *pkgAuth.JWTService) *gin.Engine {
	r := gin.New()
	r.GET("/me", NewAuthMiddleware(jwt).JWTAuth(), func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": actor.UserID, "role": actor.Role})
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	jwt := newJWT(time.Hour)
	r := whoAmIRouter(jwt)

	token, err := jwt.GenerateToken(7, "adv@example.edu", "advisor")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userId":7,"role":"advisor"}`, w.Body.String())

	// websocket clients pass the token as a query parameter
	req = httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_Rejects(t *testing.T) {
	jwt := newJWT(time.Hour)
	r := whoAmIRouter(jwt)

	unknownRole, err := jwt.GenerateToken(7, "", "dean")
	require.NoError(t, err)
	expired, err := newJWT(-time.Minute).GenerateToken(7, "", "advisor")
	require.NoError(t, err)
	foreign, err := pkgAuth.NewJWTService(pkgAuth.JWTConfig{SecretKey: "other", TokenIssuer: "earlyalert"}).GenerateToken(7, "", "advisor")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   dto.ErrorCode
	}{
		{"missing", "", dto.ErrorCodeUnauthorized},
		{"garbage", "Bearer not-a-token", dto.ErrorCodeInvalidToken},
		{"unknown role", "Bearer " + unknownRole, dto.ErrorCodeInvalidToken},
		{"expired", "Bearer " + expired, dto.ErrorCodeExpiredToken},
		{"wrong key", "Bearer " + foreign, dto.ErrorCodeInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w).Error.Code)
		})
	}
}

func TestRoleRequired(t *testing.T) {
	jwt := newJWT(time.Hour)
	m := NewAuthMiddleware(jwt)
	r := gin.New()
	r.GET("/admin", m.JWTAuth(), m.RoleRequired(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for role, want := range map[string]int{"admin": http.StatusNoContent, "advisor": http.StatusForbidden} {
		token, err := jwt.GenerateToken(1, "", role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func errorRouter(role models.RoleType, err error) *gin.Engine {
	r := gin.New()
	r.GET("/fail", func(c *gin.Context) {
		c.Set(ContextUserID, int64(3))
		c.Set(ContextRoleType, string(role))
		HandleAPIError(c, err)
	})
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleAPIError(t *testing.T) {
	transition := &apperrors.InvalidTransitionError{
		Entity: "intervention", ID: 9, From: "Scheduled", To: "Completed",
		Allowed: []string{"In Progress", "Cancelled", "No Show"},
	}

	cases := []struct {
		name   string
		err    error
		status int
		code   dto.ErrorCode
	}{
		{"validation", apperrors.NewValidationError("successRating", "must be between 1 and 5"), http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"not found", apperrors.NewNotFoundError("student", int64(4)), http.StatusNotFound, dto.ErrorCodeResourceNotFound},
		{"transition", transition, http.StatusConflict, dto.ErrorCodeInvalidTransition},
		{"conflict", apperrors.NewConflictError("follow-up already exists", nil), http.StatusConflict, dto.ErrorCodeConflict},
		{"permission", apperrors.NewPermissionError("no"), http.StatusForbidden, dto.ErrorCodeForbidden},
		{"storage", apperrors.NewStorageError("interventions.update", errors.New("connection reset")), http.StatusInternalServerError, dto.ErrorCodeDatabaseError},
		{"unclassified", errors.New("template render failed"), http.StatusInternalServerError, dto.ErrorCodeInternalServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(errorRouter(models.RoleAdvisor, tc.err), http.MethodGet, "/fail", "")
			require.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}

	w := serve(errorRouter(models.RoleAdvisor, transition), http.MethodGet, "/fail", "")
	assert.JSONEq(t, `{"current":"Scheduled","allowed":["In Progress","Cancelled","No Show"]}`,
		string(mustField(t, w.Body.Bytes(), "error", "details")))

	w = serve(errorRouter(models.RoleAdvisor, apperrors.NewValidationError("successRating", "must be between 1 and 5")), http.MethodGet, "/fail", "")
	assert.Equal(t, "successRating", decodeError(t, w).Error.Field)
	assert.Equal(t, dto.ErrorSeverityError, decodeError(t, w).Error.Severity)

	w = serve(errorRouter(models.RoleAdvisor, errors.New("template render failed")), http.MethodGet, "/fail", "")
	assert.Equal(t, dto.ErrorSeverityCritical, decodeError(t, w).Error.Severity)
	assert.NotContains(t, w.Body.String(), "template render failed")
	assert.NotContains(t, w.Body.String(), "operation")
}

func TestHandleAPIError_StorageDetailsHiddenFromStudents(t *testing.T) {
	err := apperrors.NewStorageError("interventions.update", errors.New("connection reset by 10.0.0.5"))

	w := serve(errorRouter(models.RoleStudent, err), http.MethodGet, "/fail", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w).Error.Message)
	assert.NotContains(t, w.Body.String(), "interventions.update")
	assert.NotContains(t, w.Body.String(), "10.0.0.5")

	w = serve(errorRouter(models.RoleAdmin, err), http.MethodGet, "/fail", "")
	assert.Contains(t, w.Body.String(), "interventions.update")
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func mustField(t *testing.T, raw []byte, path ...string) json.RawMessage {
	t.Helper()
	cur := json.RawMessage(raw)
	for _, p := range path {
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(cur, &m))
		cur = m[p]
	}
	return cur
}

type sampleRequest struct {
	Title  string   `json:"title" binding:"required"`
	Rating *float64 `json:"rating" binding:"required,min=0,max=1"`
}

func TestBindJSON(t *testing.T) {
	r := gin.New()
	r.POST("/bind", func(c *gin.Context) {
		var req sampleRequest
		if !BindJSON(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodPost, "/bind", `{"title":"x","rating":0}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(r, http.MethodPost, "/bind", `{"title":"x","rating":1.5}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "rating", body.Error.Field)
	assert.Equal(t, "rating must be at most 1", body.Error.Message)

	w = serve(r, http.MethodPost, "/bind", `{"rating":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request format", decodeError(t, w).Error.Message)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	w := serve(r, http.MethodGet, "/ping", "")
	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}
