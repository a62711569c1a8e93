package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/reservation-app/controllers"
	"github.com/yeremiapane/reservation-app/middlewares"
	"github.com/yeremiapane/reservation-app/services"
)

// SetupRouter wires the services and HTTP routes. The notifier defaults to
// the gateway dispatcher; tests pass a fake.
func SetupRouter(db *gorm.DB, notifier services.NotificationDispatcher) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	// Gin snapshots the middleware chain when a route is registered, so the
	// per-IP limiter has to be installed before the routes below.
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	if notifier == nil {
		notifier = services.GetGatewayDispatcher()
	}

	allocator := services.NewTableAllocator(db)
	promoter := services.NewWaitlistPromoter(db, allocator, notifier)
	reservationSvc := services.NewReservationService(db, allocator, promoter, notifier)

	reservationCtrl := controllers.NewReservationController(db, reservationSvc)
	tableCtrl := controllers.NewTableController(db, promoter)
	waitlistCtrl := controllers.NewWaitlistController(db, promoter)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter for the public booking endpoint
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/reservations", reservationCtrl.CreateReservation)
	}

	// RESERVATIONS
	r.GET("/reservations", reservationCtrl.GetAllReservations)
	r.GET("/reservations/:reservation_id", reservationCtrl.GetReservationByID)
	r.PATCH("/reservations/:reservation_id/status", reservationCtrl.UpdateReservationStatus)
	r.DELETE("/reservations/:reservation_id", reservationCtrl.DeleteReservation)

	// WAITLIST
	r.GET("/waitlist", waitlistCtrl.GetWaitlist)
	r.POST("/waitlist/:waitlist_id/convert", waitlistCtrl.ConvertWaitlistEntry)
	r.DELETE("/waitlist/:waitlist_id", waitlistCtrl.RemoveWaitlistEntry)

	// TABLES (restaurant setup)
	r.POST("/tables", tableCtrl.CreateTable)
	r.GET("/tables", tableCtrl.GetAllTables)
	r.GET("/tables/:table_id", tableCtrl.GetTableByID)
	r.DELETE("/tables/:table_id", tableCtrl.DeleteTable)

	// Floor display WebSocket feed
	r.GET("/ws/floor", controllers.FloorHandler)

	return r
}
