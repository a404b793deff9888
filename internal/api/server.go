package api

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"batteryctl/internal/api/handlers"
	"batteryctl/internal/api/middleware"
)

// Options wires the router to its collaborators. Nil fields disable the
// corresponding endpoints gracefully.
type Options struct {
	Market   handlers.MarketSource
	Runs     handlers.RunSource
	Registry *prometheus.Registry

	GridFee     float64
	SourceLabel string
	MaxHours    float64
}

// NewRouter builds the HTTP API.
func NewRouter(opts Options) *gin.Engine {
	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if opts.Registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}

	planHandler := handlers.NewPlanHandler()
	forecastHandler := handlers.NewForecastHandler(opts.Market, opts.GridFee, opts.SourceLabel, opts.MaxHours)
	runsHandler := handlers.NewRunsHandler(opts.Runs)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/plan", planHandler.ComputePlan)
		v1.GET("/forecast", forecastHandler.GetForecast)
		v1.GET("/runs", runsHandler.ListRuns)
	}

	return router
}
