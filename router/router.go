package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-backoffice/controllers"
	"github.com/yeremiapane/restaurant-backoffice/kds"
	"github.com/yeremiapane/restaurant-backoffice/middlewares"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

// Dependencies is everything the HTTP layer needs.
type Dependencies struct {
	DB      *gorm.DB
	Session *services.Session
	Hub     *kds.Hub
	Tokens  *utils.TokenManager
	Logger  *logrus.Logger

	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.LoggerMiddleware(deps.Logger))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(deps.CORSOrigin))
	if deps.RateLimitRPS > 0 {
		r.Use(middlewares.NewRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst).RateLimit())
	}

	userCtrl := controllers.NewUserController(deps.DB, deps.Tokens, deps.Logger)
	orderCtrl := controllers.NewOrderController(deps.Session, deps.Logger)
	adminCtrl := controllers.NewAdminController(deps.Session)
	customerCtrl := controllers.NewCustomerController(deps.DB, deps.Session.Orders)
	notifCtrl := controllers.NewNotificationController(deps.DB)
	kdsCtrl := controllers.NewKDSController(deps.Hub)

	r.GET("/health", func(c *gin.Context) {
		loading, err := deps.Session.Sync.Status()
		utils.RespondJSON(c, http.StatusOK, "ok", gin.H{
			"realtime_loading": loading,
			"realtime_ok":      err == nil,
		})
	})

	// Public
	r.POST("/login", middlewares.NewStrictRateLimiter().RateLimit(), userCtrl.Login)

	// Websocket, token in the query string
	r.GET("/ws", middlewares.WebSocketAuthMiddleware(deps.Tokens), kdsCtrl.KDSHandler)

	admin := r.Group("/admin")
	admin.Use(middlewares.AuthMiddleware(deps.Tokens))
	admin.Use(middlewares.RequireRole(models.RoleOperator))
	{
		admin.POST("/logout", userCtrl.Logout)
		admin.GET("/profile", userCtrl.GetProfile)

		// Orders
		admin.GET("/orders", orderCtrl.GetAllOrders)
		admin.POST("/orders", orderCtrl.CreateOrder)
		admin.POST("/orders/viewed", orderCtrl.MarkOrdersViewed)
		admin.GET("/orders/:order_id", orderCtrl.GetOrderByID)
		admin.PATCH("/orders/:order_id/status", orderCtrl.UpdateOrderStatus)
		admin.GET("/orders/:order_id/transitions", orderCtrl.GetAllowedTransitions)
		admin.DELETE("/orders/:order_id", middlewares.RequireRole(models.RoleAdmin), orderCtrl.DeleteOrder)

		// Dashboard
		admin.GET("/dashboard", adminCtrl.GetDashboardStats)
		admin.GET("/realtime/status", adminCtrl.GetRealtimeStatus)

		// Customers
		admin.GET("/customers", customerCtrl.GetAllCustomers)
		admin.POST("/customers", customerCtrl.CreateCustomer)
		admin.GET("/customers/:customer_id", customerCtrl.GetCustomerByID)
		admin.GET("/customers/:customer_id/orders", customerCtrl.GetCustomerOrders)

		// Notifications
		admin.GET("/notifications", notifCtrl.GetAllNotifications)
		admin.DELETE("/notifications/:notif_id", notifCtrl.DeleteNotification)
	}

	return r
}
