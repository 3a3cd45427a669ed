package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"carpool/internal/handler"
	"carpool/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	BookingHandler *handler.BookingHandler
	DriverHandler  *handler.DriverHandler
	PaymentHandler *handler.PaymentHandler
	UserHandler    *handler.UserHandler
	RedisClient    *redis.Client // optional; enables idempotency keys
	NewRelicApp    *newrelic.Application
	JWTSecret      string
	Logger         logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	// Gateway callbacks authenticate with the order signature, not a user token.
	v1.POST("/passengers/:id/confirm-payment", deps.PaymentHandler.ConfirmPayment)

	authed := v1.Group("")
	authed.Use(middleware.Authenticate(deps.JWTSecret))
	authed.Use(middleware.NewRelicUser())
	if deps.RedisClient != nil {
		authed.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}
	{
		rides := authed.Group("/rides")
		rides.POST("", deps.RideHandler.PostRide)
		rides.GET("", deps.RideHandler.ListRides)
		rides.GET("/:id", deps.RideHandler.GetRide)
		rides.POST("/:id/start", deps.RideHandler.StartRide)
		rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
		rides.POST("/:id/checkout", deps.RideHandler.Checkout)
		rides.GET("/:id/driver-location", deps.DriverHandler.RideDriverLocation)

		rides.POST("/:id/book", deps.BookingHandler.BookRide)
		rides.POST("/:id/cancel-booking", deps.BookingHandler.CancelBooking)
		rides.POST("/:id/passengers/:uid/check-in", deps.BookingHandler.CheckIn)
		rides.POST("/:id/passengers/:uid/no-show", deps.BookingHandler.NoShow)

		authed.POST("/passengers/:id/force-cancel", deps.BookingHandler.ForceCancel)
		authed.GET("/bookings", deps.UserHandler.ListBookings)
		authed.POST("/vouchers/validate", deps.UserHandler.ValidateVoucher)
		authed.POST("/drivers/location", deps.DriverHandler.UpdateLocation)
	}

	return router
}
