package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pharmacy-service/internal/models"
	"pharmacy-service/internal/service"
)

type fakeUserDirectory struct {
	users map[string]*models.User
}

func (f *fakeUserDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	return u, nil
}

func (f *fakeUserDirectory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeUserDirectory) ListAdmins(ctx context.Context) ([]models.User, error) {
	return nil, nil
}

func (f *fakeUserDirectory) UpsertUser(ctx context.Context, u *models.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUserDirectory) UpdateUserRole(ctx context.Context, id, role string) error {
	return nil
}

func identityRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	users := &fakeUserDirectory{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "kofi@example.test", Role: models.RoleClient},
	}}
	auth := service.NewAuthService(users, nil)

	router := gin.New()
	router.GET("/whoami", IdentityMiddleware(auth), func(c *gin.Context) {
		sess := sessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": sess.UserID, "role": sess.Role})
	})
	return router
}

func TestIdentityMiddlewareMissingHeader(t *testing.T) {
	router := identityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentityMiddlewareUnknownUser(t *testing.T) {
	router := identityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-Id", "ghost")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentityMiddlewareResolvesSession(t *testing.T) {
	router := identityRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-Id", "u1")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
	assert.Contains(t, w.Body.String(), `"role":"client"`)
}
