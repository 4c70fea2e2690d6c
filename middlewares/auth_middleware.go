package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-backoffice/utils"
)

// Context keys set by the auth middlewares.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextToken  = "token"
)

func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("Authorization header missing"))
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid token format"))
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if !authorize(c, tokens, tokenString) {
			return
		}
		c.Next()
	}
}

// authorize validates tokenString and stores its claims on the context. It aborts the
// request and returns false when the token is not acceptable.
func authorize(c *gin.Context, tokens *utils.TokenManager, tokenString string) bool {
	claims, err := tokens.ParseToken(tokenString)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		c.Abort()
		return false
	}
	if claims.UserID == 0 {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid user ID in token"))
		c.Abort()
		return false
	}

	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextRole, claims.Role)
	c.Set(ContextToken, tokenString)
	return true
}
