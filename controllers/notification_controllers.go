package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

const notificationPageLimit = 100

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GetAllNotifications -> newest first, ?level=success|error|info
func (nc *NotificationController) GetAllNotifications(c *gin.Context) {
	query := nc.DB.Order("created_at DESC").Order("id DESC").Limit(notificationPageLimit)
	if level := c.Query("level"); level != "" {
		query = query.Where("level = ?", level)
	}

	var notifs []models.Notification
	if err := query.Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications", notifs)
}

func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	idStr := c.Param("notif_id")
	id, _ := strconv.Atoi(idStr)

	result := nc.DB.Delete(&models.Notification{}, id)
	if result.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, gorm.ErrRecordNotFound)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification deleted", gin.H{"notif_id": id})
}
