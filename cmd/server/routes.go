package main

import (
	"log/slog"
	"net/http"
	"time"
	"toll-payment/internal/transactions"
	transactionHandlers "toll-payment/internal/transactions/handlers"
	"toll-payment/internal/vehicles"
	vehicleHandlers "toll-payment/internal/vehicles/handlers"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const version = "1.0.0"

type routeDeps struct {
	logger              *slog.Logger
	vehicleService      *vehicles.Service
	transactionService  *transactions.Service
	reconciler          *transactions.Reconciler
	gate                *transactions.GateDecider
	anomalies           transactions.AnomalyRecorder
	gateResponseTimeout time.Duration
	verifyRate          float64
	verifyBurst         int
}

func newRouter(d routeDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				d.logger.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			d.logger.Debug("request", attrs...)
			return nil
		},
	}))

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "active",
			"version":  version,
			"services": []string{"mpesa", "ocr", "database"},
		})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Per-IP pacing for /verify.
	verifyLimiter := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(d.verifyRate),
			Burst:     d.verifyBurst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many verification attempts, retry shortly"})
		},
	})

	e.POST("/register", vehicleHandlers.NewRegisterHandler(d.vehicleService).Handle)
	e.POST("/verify", transactionHandlers.NewVerifyHandler(d.transactionService, d.logger).Handle, verifyLimiter)
	e.POST("/mpesa/callback", transactionHandlers.NewCallbackHandler(d.reconciler, d.anomalies, d.logger).Handle)
	e.GET("/transaction-status/:id", transactionHandlers.NewTransactionStatusHandler(d.transactionService).Handle)
	e.GET("/gate-status", transactionHandlers.NewGateStatusHandler(d.gate, d.gateResponseTimeout).Handle)

	return e
}
