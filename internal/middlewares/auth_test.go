package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/logimax/logimax-api/internal/jwt"
	"github.com/logimax/logimax-api/internal/models"
)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

type fakeProfiles struct {
	user *models.UserDB
	err  error
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id string) (*models.UserDB, error) {
	return f.user, f.err
}

func TestAuthMiddleware(t *testing.T) {
	j := jwt.New("test-secret", time.Hour)
	userID := primitive.NewObjectID().Hex()

	token, err := j.Generate(context.Background(), userID)
	assert.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		var gotUserID string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID, _ = UserIDFromContext(r.Context())
			claims, ok := ClaimsFromContext(r.Context())
			assert.True(t, ok)
			assert.NotEmpty(t, claims.ID)
			w.WriteHeader(http.StatusOK)
		})

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(j, nil)(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID, gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		AuthMiddleware(j, nil)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Invalid or missing token", body["message"])
	})

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer not.a.token")
		w := httptest.NewRecorder()

		AuthMiddleware(j, nil)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked token", func(t *testing.T) {
		claims, err := j.Claims(context.Background(), token)
		assert.NoError(t, err)

		revocations := &fakeRevocations{revoked: map[string]bool{claims.ID: true}}

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(j, revocations)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revocation store down", func(t *testing.T) {
		revocations := &fakeRevocations{err: errors.New("redis: connection refused")}

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(j, revocations)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Token verification is temporarily unavailable", body["message"])
	})

	t.Run("expired token", func(t *testing.T) {
		expired := jwt.New("test-secret", -time.Minute)
		tok, err := expired.Generate(context.Background(), userID)
		assert.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()

		AuthMiddleware(j, nil)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	userID := primitive.NewObjectID().Hex()

	withUser := func(r *http.Request) *http.Request {
		return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
	}

	t.Run("admin passes", func(t *testing.T) {
		profiles := &fakeProfiles{user: &models.UserDB{Role: models.RoleAdmin}}

		called := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

		r := withUser(httptest.NewRequest(http.MethodGet, "/", nil))
		w := httptest.NewRecorder()

		RequireAdmin(profiles)(next).ServeHTTP(w, r)

		assert.True(t, called)
	})

	t.Run("plain user forbidden", func(t *testing.T) {
		profiles := &fakeProfiles{user: &models.UserDB{Role: models.RoleUser}}

		r := withUser(httptest.NewRequest(http.MethodGet, "/", nil))
		w := httptest.NewRecorder()

		RequireAdmin(profiles)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		var body map[string]string
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Admin access required", body["message"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		profiles := &fakeProfiles{}

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		RequireAdmin(profiles)(panicHandler(t)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// panicHandler fails the test if the middleware lets the request through.
func panicHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not have been called")
	})
}
