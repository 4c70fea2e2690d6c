package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-backoffice/utils"
)

// WebSocketAuthMiddleware reads the token from the query string; browsers cannot set
// headers on a websocket handshake.
func WebSocketAuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			utils.RespondError(c, http.StatusUnauthorized, errors.New("token missing"))
			c.Abort()
			return
		}
		if !authorize(c, tokens, token) {
			return
		}
		c.Next()
	}
}
