package api

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/skymarshal/core/internal/atclient"
	"github.com/skymarshal/core/internal/atmodel"
	"github.com/skymarshal/core/internal/auth"
	"github.com/skymarshal/core/internal/config"
	"github.com/skymarshal/core/internal/deletion"
	"github.com/skymarshal/core/internal/export"
	"github.com/skymarshal/core/internal/graph"
	"github.com/skymarshal/core/internal/network"
	"github.com/skymarshal/core/internal/profilecache"
	"github.com/skymarshal/core/internal/session"
)

// App bundles every collaborator a handler needs, grounded on the
// teacher's AccountHandler{accountService, authService, validator}: each
// spec.md §4 module owns its own file; App is just the wiring point gin
// handlers close over.
type App struct {
	Paths    config.Paths
	Settings *config.SettingsManager

	Client      *atclient.Client
	AuthMgr     *auth.Manager
	Sessions    *session.Registry
	ProfileCache profilecache.Cache

	ContentStore *export.ContentStore
	Exporter     *export.DataExporter

	NetworkFetcher *network.Fetcher
	NetworkCache   *network.FetchCache

	Shares *ShareStore
	Jobs   *JobRegistry
	Hub    *Hub

	facadeAuth *FacadeAuth
	validator  *validator.Validate

	mu      sync.Mutex
	engines map[atmodel.DID]*deletion.Engine
}

// NewApp wires every collaborator. jwtSecret signs the facade's browser
// session tokens; it is distinct from the ATProto JWTs internal/auth.Manager
// holds against the PDS.
func NewApp(
	paths config.Paths,
	settings *config.SettingsManager,
	client *atclient.Client,
	authMgr *auth.Manager,
	sessions *session.Registry,
	profileCache profilecache.Cache,
	contentStore *export.ContentStore,
	exporter *export.DataExporter,
	fetcher *network.Fetcher,
	netCache *network.FetchCache,
	shares *ShareStore,
	revocation RevocationStore,
	jwtSecret []byte,
) *App {
	return &App{
		Paths:          paths,
		Settings:       settings,
		Client:         client,
		AuthMgr:        authMgr,
		Sessions:       sessions,
		ProfileCache:   profileCache,
		ContentStore:   contentStore,
		Exporter:       exporter,
		NetworkFetcher: fetcher,
		NetworkCache:   netCache,
		Shares:         shares,
		Jobs:           NewJobRegistry(),
		Hub:            NewHub(),
		facadeAuth:     NewFacadeAuth(jwtSecret, revocation),
		validator:      validator.New(),
		engines:        make(map[atmodel.DID]*deletion.Engine),
	}
}

// engineFor lazily builds (and caches) one deletion.Engine per DID, so its
// internal rate limiter's pacing state survives across requests for the
// same account rather than resetting on every call.
func (a *App) engineFor(did atmodel.DID) *deletion.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.engines[did]; ok {
		return e
	}
	e := deletion.NewEngine(a.Client, a.AuthMgr, did, a.ContentStore)
	a.engines[did] = e
	return e
}

// NewRouter builds the gin.Engine, grounded on
// services/account-manager/main.go::setupRouter: gin.New() plus
// Logger/Recovery/CORS middleware, a health check, swagger docs, and a
// Prometheus /metrics endpoint (the teacher doesn't expose one directly,
// but depends on the same prometheus/client_golang the rest of the
// retrieved pack uses for instrumentation).
func (a *App) NewRouter() *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/health", a.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/ws", a.handleWebSocket)

	apiGroup := router.Group("/api")
	{
		authGroup := apiGroup.Group("/auth")
		{
			authGroup.POST("/login", a.handleLogin)
			authGroup.GET("/session", a.handleAuthSession)
			authGroup.POST("/logout", a.requireSession(), a.handleLogout)
		}

		content := apiGroup.Group("/content", a.requireSession())
		{
			content.POST("/load", a.handleContentLoad)
			content.GET("/summary", a.handleContentSummary)
		}

		apiGroup.POST("/search", a.requireSession(), a.handleSearch)
		apiGroup.POST("/delete", a.requireSession(), a.handleDelete)

		exportGroup := apiGroup.Group("/export", a.requireSession())
		{
			exportGroup.GET("/csv", a.handleExportCSV)
			exportGroup.GET("/car", a.handleExportCAR)
		}

		apiGroup.POST("/share", a.requireSession(), a.handleCreateShare)
		apiGroup.GET("/share/:id", a.handleGetShare)

		analytics := apiGroup.Group("/analytics", a.requireSession())
		{
			analytics.GET("/insights", a.handleAnalyticsInsights)
			analytics.GET("/sentiment", a.handleAnalyticsSentiment)
			analytics.GET("/time-patterns", a.handleAnalyticsTimePatterns)
			analytics.GET("/engagement", a.handleAnalyticsEngagement)
			analytics.GET("/words", a.handleAnalyticsWords)
		}

		netGroup := apiGroup.Group("/network", a.requireSession())
		{
			netGroup.POST("/fetch", a.handleNetworkFetch)
			netGroup.GET("/status/:id", a.handleNetworkStatus)
			netGroup.GET("/result/:id", a.handleNetworkResult)
		}

		settingsGroup := apiGroup.Group("/settings", a.requireSession())
		{
			settingsGroup.GET("", a.handleGetSettings)
			settingsGroup.PUT("", a.handleUpdateSettings)
		}

		apiGroup.POST("/cleanup/analyze", a.requireSession(), a.handleCleanupAnalyze)
	}

	return router
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// handleHealth mirrors services/account-manager/main.go::healthCheckHandler.
func (a *App) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now(), Version: "1.0.0"})
}

func (a *App) sessionFromContext(c *gin.Context) *atmodel.Session {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*atmodel.Session)
	return sess
}
