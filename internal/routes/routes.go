// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"lab-rig-service/internal/config"
	"lab-rig-service/internal/database"
	"lab-rig-service/internal/handler"
	"lab-rig-service/internal/middleware"
	"lab-rig-service/internal/utils"
)

// Dependencies are the services the routes are served by. Profiles, Runs and DB are
// nil when persistence is disabled.
type Dependencies struct {
	DB          *database.DB
	Experiment  handler.ExperimentRunner
	Instruments handler.InstrumentManager
	Profiles    handler.ProfileManager
	Runs        handler.RunHistory
	WebSocket   *handler.WebSocketHandler
}

// Router holds all dependencies for routing
type Router struct {
	config *config.Config
	logger *zap.Logger
	deps   Dependencies
}

// NewRouter creates a new router instance
func NewRouter(config *config.Config, logger *zap.Logger, deps Dependencies) *Router {
	return &Router{
		config: config,
		logger: logger,
		deps:   deps,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	r.addMiddleware(router)
	r.addRoutes(router)
	return router
}

func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(r.logger))

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	router.Use(middleware.CORSMiddleware(&r.config.Security))
}

func (r *Router) addRoutes(router *gin.Engine) {
	handler.NewHealthHandler(r.deps.DB, r.deps.Experiment, r.config, r.logger).RegisterRoutes(router)

	apiV1 := router.Group("/api/v1")
	handler.NewExperimentHandler(r.deps.Experiment, r.logger).RegisterRoutes(apiV1)
	handler.NewInstrumentHandler(r.deps.Instruments, r.logger).RegisterRoutes(apiV1)

	if r.deps.Profiles != nil {
		handler.NewProfileHandler(r.deps.Profiles, r.logger).RegisterRoutes(apiV1)
	}
	if r.deps.Runs != nil {
		handler.NewRunHandler(r.deps.Runs, r.logger).RegisterRoutes(apiV1)
	}

	if r.deps.WebSocket != nil {
		router.GET("/ws/experiment", r.deps.WebSocket.HandleExperimentConnection)
		router.GET("/ws/stats", r.deps.WebSocket.HandleStats)
	}

	r.addDocumentationRoutes(router)

	r.logger.Info("Routes configured",
		zap.Bool("persistence", r.deps.Profiles != nil),
		zap.Bool("websocket", r.deps.WebSocket != nil),
	)
}

func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
