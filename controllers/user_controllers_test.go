package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

func setupUserRouter(t *testing.T) (*testEnv, *utils.TokenManager) {
	env := newTestEnv(t)
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	uc := NewUserController(env.db, tokens, env.logger)
	require.NoError(t, SeedAdmin(env.db, "Admin@Example.com", "s3cret", env.logger))

	env.router.POST("/login", uc.Login)
	authed := env.router.Group("/", func(c *gin.Context) {
		c.Set("token", c.GetHeader("X-Token"))
		c.Next()
	}, withUser(1, models.RoleAdmin))
	authed.POST("/logout", uc.Logout)
	authed.GET("/profile", uc.GetProfile)
	return env, tokens
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	env, _ := setupUserRouter(t)
	require.NoError(t, SeedAdmin(env.db, "admin@example.com", "other", env.logger))
	require.NoError(t, SeedAdmin(env.db, "nobody@example.com", "", env.logger))

	var count int64
	env.db.Model(&models.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestLogin(t *testing.T) {
	env, tokens := setupUserRouter(t)

	w := env.do(http.MethodPost, "/login", map[string]string{"email": " ADMIN@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Token    string `json:"token"`
		UserRole string `json:"user_role"`
	}
	decode(t, w, &body)
	assert.Equal(t, models.RoleAdmin, body.UserRole)

	claims, err := tokens.ParseToken(body.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(1), claims.UserID)

	w = env.do(http.MethodPost, "/login", map[string]string{"email": "admin@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/login", map[string]string{"email": "ghost@example.com", "password": "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodPost, "/login", map[string]string{"email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfileAndLogout(t *testing.T) {
	env, tokens := setupUserRouter(t)

	w := env.do(http.MethodGet, "/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	decode(t, w, &profile)
	assert.Equal(t, "admin@example.com", profile.Email)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/logout", nil).Code)

	token, err := tokens.GenerateToken(1, models.RoleAdmin)
	require.NoError(t, err)
	req := newRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("X-Token", token)
	w = serve(env.router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, tokens.IsRevoked(token))
}
