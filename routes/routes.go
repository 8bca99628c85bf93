package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storefront/controllers"
	"storefront/middlewares"
)

type Options struct {
	Products       *controllers.ProductController
	Orders         *controllers.OrderController
	Logger         *zap.Logger
	CORSOrigins    []string
	AdminJWTSecret string
	// StaticDir, when set, is served for every path no route matches.
	StaticDir string
}

func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Logger(opts.Logger))
	r.Use(middlewares.PrometheusMiddleware())
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/products", opts.Products.ListProducts)
		api.POST("/orders", opts.Orders.CreateOrder)
		if opts.AdminJWTSecret != "" {
			api.GET("/orders", middlewares.AdminAuth(opts.AdminJWTSecret), opts.Orders.ListOrders)
		}
	}

	if opts.StaticDir != "" {
		files := http.FileServer(http.Dir(opts.StaticDir))
		r.NoRoute(gin.WrapH(files))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middlewares.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
