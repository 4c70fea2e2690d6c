package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

type AdminController struct {
	Session *services.Session
}

func NewAdminController(session *services.Session) *AdminController {
	return &AdminController{Session: session}
}

// GetDashboardStats -> pending badge, counts by status and type, top selling products
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	stats, err := ac.Session.Dashboard.Stats(c.Request.Context())
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", stats)
}

// GetRealtimeStatus reports whether this server's realtime subscription is up.
func (ac *AdminController) GetRealtimeStatus(c *gin.Context) {
	loading, err := ac.Session.Sync.Status()
	data := gin.H{
		"state":      ac.Session.Sync.State(),
		"is_loading": loading,
		"error":      nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	utils.RespondJSON(c, http.StatusOK, "Realtime status", data)
}
