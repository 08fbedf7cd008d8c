// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"diet-ledger/internal/advisor"
	"diet-ledger/internal/catalog"
	"diet-ledger/internal/config"
	"diet-ledger/internal/ledger"
	"diet-ledger/internal/logger"
	"diet-ledger/internal/profile"
	"diet-ledger/internal/storage"
)

type DietServer struct {
	router     *gin.Engine
	httpServer *http.Server
	catalog    *catalog.Catalog
	storage    storage.Backend
	ledger     *ledger.Store
	profiles   *profile.Store
	advisor    advisor.Advisor
	config     *config.Config
	log        *logger.Logger
	now        func() time.Time
}

// NewDietServer loads the catalog (seeding it when absent), opens the ledger
// and profile stores and builds the HTTP routes. A catalog error is returned
// unchanged so the caller can treat it as fatal.
func NewDietServer(cfg *config.Config, log *logger.Logger) (*DietServer, error) {
	cat, err := catalog.LoadOrSeed(cfg.CatalogPath(), catalog.Options{Strict: cfg.Catalog.StrictNumbers}, log)
	if err != nil {
		return nil, err
	}

	stor, err := storage.Open(cfg.Data.Backend, cfg.LedgerPath(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	led, err := ledger.Open(cat, stor, log)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	profiles, err := profile.Open(cfg.ProfilePath(), cfg.Profile, log)
	if err != nil {
		stor.Close()
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}

	s := &DietServer{
		catalog:  cat,
		storage:  stor,
		ledger:   led,
		profiles: profiles,
		advisor:  advisor.New(cfg.AdvisorConfig(), log),
		config:   cfg,
		log:      log,
		now:      time.Now,
	}

	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func (s *DietServer) setupRoutes() {
	s.router.Use(gin.Recovery(), requestLogger(s.log))
	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "foods": s.catalog.Len()})
	})

	api := s.router.Group("/api")
	{
		api.GET("/foods", s.listFoods)
		api.GET("/foods/:name", s.getFood)

		api.GET("/days/:date", s.getDay)
		api.POST("/days/:date/entries", s.addEntry)
		api.DELETE("/days/:date", s.clearDay)
		api.POST("/days/:date/advice", s.advise)
		api.GET("/days/:date/report.xlsx", s.exportReport)

		api.PATCH("/entries/:id", s.editEntry)
		api.POST("/entries/delete", s.deleteEntries)

		api.GET("/profile", s.getProfile)
		api.PUT("/profile", s.updateProfile)
		api.GET("/target", s.getTarget)
	}

	s.router.POST("/mcp", s.handleMCP)
}

// requestLogger logs one line per request at info level.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func (s *DietServer) Start(ctx context.Context) error {
	s.log.Info("Starting diet ledger server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *DietServer) Stop() error {
	var shutdownErr error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}
