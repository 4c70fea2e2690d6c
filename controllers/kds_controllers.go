package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-backoffice/kds"
	"github.com/yeremiapane/restaurant-backoffice/models"
)

type KDSController struct {
	Hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{Hub: hub}
}

// KDSHandler -> websocket endpoint for the back-office screens
func (kc *KDSController) KDSHandler(c *gin.Context) {
	role := c.GetString("role")
	if role == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	if role != models.RoleAdmin && role != models.RoleOperator {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	kc.Hub.ServeWS(c.Writer, c.Request, role)
}
