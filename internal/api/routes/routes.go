// Package routes wires handlers and middleware into the HTTP router.
package routes

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbank-service/dbank_service/internal/api/handlers"
	"github.com/dbank-service/dbank_service/internal/api/middleware"
	"github.com/dbank-service/dbank_service/internal/infrastructure/config"
	"github.com/dbank-service/dbank_service/pkg/logger"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// RegisterValidators installs custom request validators on gin's
// binding engine. Must run before the first request binds.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("txhash", func(fl validator.FieldLevel) bool {
			return txHashPattern.MatchString(fl.Field().String())
		})
	}
}

// SetupRouter builds the gin engine with the full middleware chain and
// all API routes.
func SetupRouter(
	cfg *config.Config,
	log *logger.Logger,
	paymentHandlers *handlers.PaymentHandlers,
	cardHandlers *handlers.CardHandlers,
	healthHandlers *handlers.HealthHandlers,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	RegisterValidators()

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin))

	router.GET("/health", healthHandlers.Health)
	router.GET("/health/ready", healthHandlers.Readiness)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authentication(cfg, log))
	{
		payments := v1.Group("/payments")
		{
			payments.POST("/verify", paymentHandlers.VerifyPayment)
		}

		credits := v1.Group("/credits")
		{
			credits.GET("/balance", paymentHandlers.GetBalance)
		}

		cards := v1.Group("/cards")
		{
			cards.POST("", cardHandlers.CreateCard)
			cards.GET("", cardHandlers.ListCards)
			cards.POST("/topup/verify", cardHandlers.VerifyCardTopUp)
			cards.GET("/:id", cardHandlers.GetCard)
			cards.POST("/:id/freeze", cardHandlers.FreezeCard)
			cards.POST("/:id/unfreeze", cardHandlers.UnfreezeCard)
			cards.POST("/:id/topup", cardHandlers.TopUpCard)
			cards.GET("/:id/transactions", cardHandlers.ListCardTransactions)
		}

		preload := v1.Group("/preload-cards")
		{
			preload.GET("", cardHandlers.ListPreloadCards)
			preload.POST("/purchase", cardHandlers.PurchasePreloadCard)
		}
	}

	return router
}
