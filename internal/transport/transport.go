package transport

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/transport/middleware"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries the HTTP-facing settings InitRoutes needs
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	JWTSecret      string
	JWTIssuer      string
	WebhookSecret  string
}

// Handlers groups every HTTP handler the API serves
type Handlers struct {
	Health   *HealthHandler
	Bookings *BookingHandler
	Payments *PaymentHandler
	Rooms    *RoomHandler
	Gateway  *GatewayHandler
	Admin    *AdminHandler
}

func InitRoutes(cfg RouterConfig, h Handlers, logger logrus.FieldLogger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Timeout(cfg.RequestTimeout))

	// Health check
	router.GET("/health", h.Health.Health)

	api := router.Group("/api/v1")

	// Gateway webhook, authenticated by shared secret instead of a user token
	webhook := api.Group("/gateway", middleware.WebhookSecret(cfg.WebhookSecret))
	{
		webhook.POST("/transactions", h.Gateway.RecordTransaction)
	}

	authed := api.Group("", middleware.Auth(cfg.JWTSecret, cfg.JWTIssuer))

	// Booking routes
	bookings := authed.Group("/bookings")
	{
		bookings.POST("", middleware.RequireRole(entity.RoleStudent, entity.RoleAdmin), h.Bookings.CreateBooking)
		bookings.GET("/me", middleware.RequireRole(entity.RoleStudent), h.Bookings.GetMyBookings)
		bookings.GET("/:id", h.Bookings.GetBooking)
		bookings.DELETE("/:id", h.Bookings.CancelBooking)
		bookings.GET("/:id/payments", h.Payments.GetBookingPayments)
	}

	// Room routes
	rooms := authed.Group("/rooms")
	{
		rooms.GET("/:id/capacity", h.Rooms.GetRoomCapacity)
	}

	// Payment routes
	payments := authed.Group("/payments")
	{
		payments.POST("", middleware.RequireRole(entity.RoleStudent, entity.RoleAdmin), h.Payments.CreatePayment)
		payments.GET("/:id", h.Payments.GetPayment)
		payments.POST("/:id/recheck", h.Payments.RecheckPayment)
	}

	// Owner routes
	owner := authed.Group("/owner", middleware.RequireRole(entity.RoleOwner))
	{
		owner.GET("/bookings", h.Bookings.GetOwnerBookings)
		owner.GET("/hostels/:hostel_id/bookings", h.Bookings.GetHostelBookings)
	}

	// Admin routes
	admin := authed.Group("/admin", middleware.RequireRole(entity.RoleAdmin))
	{
		admin.GET("/receipts", h.Admin.ListReceipts)
		admin.GET("/receipts/:id", h.Admin.GetReceipt)
		admin.GET("/receipts/:id/url", h.Admin.GetReceiptURL)
		admin.GET("/payments/:id/receipts", h.Admin.GetPaymentReceipts)
		admin.POST("/payments/:id/receipts", h.Admin.RegenerateReceipt)
		admin.GET("/hostels/:hostel_id/bookings", h.Bookings.GetHostelBookings)
		admin.GET("/tasks/stats", h.Admin.GetQueueStats)
		admin.GET("/tasks/failed", h.Admin.GetFailedTasks)
		admin.POST("/tasks/failed/:task_id/requeue", h.Admin.RequeueFailedTask)
	}

	return router
}
