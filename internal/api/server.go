// Package api exposes the engine over HTTP: run history, pending transfers,
// live balances, and endpoints to trigger reconciliation and consolidation.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/torxlabs/treasury-engine/internal/adapters/banks"
	"github.com/torxlabs/treasury-engine/internal/application/consolidate"
	"github.com/torxlabs/treasury-engine/internal/application/reconcile"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/config"
	"github.com/torxlabs/treasury-engine/internal/infrastructure/storage"
)

// Server wires the engine components behind a gin router
type Server struct {
	cfg          *config.Config
	repo         storage.Repository
	registry     *banks.Registry
	orchestrator *reconcile.Orchestrator
	consolidator *consolidate.Runner
	logger       *slog.Logger
}

// NewServer creates the API server
func NewServer(
	cfg *config.Config,
	repo storage.Repository,
	registry *banks.Registry,
	orchestrator *reconcile.Orchestrator,
	consolidator *consolidate.Runner,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:          cfg,
		repo:         repo,
		registry:     registry,
		orchestrator: orchestrator,
		consolidator: consolidator,
		logger:       logger.With(slog.String("system", "api")),
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
	}))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.API.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", s.getHealth)

	api := router.Group("/api")
	{
		api.GET("/runs", s.getRuns)
		api.GET("/pending-transfers", s.getPendingTransfers)
		api.GET("/balances", s.getBalances)
		api.POST("/reconcile", s.postReconcile)
		api.POST("/consolidate", s.postConsolidate)
	}

	return router
}

// Run starts the HTTP server on the configured port
func (s *Server) Run() error {
	addr := ":" + strconv.Itoa(s.cfg.API.Port)
	s.logger.Info("api server listening", slog.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	results := s.registry.HealthCheck(ctx)

	healthy := true
	banksStatus := make(map[string]string, len(results))
	for bank, err := range results {
		if err != nil {
			healthy = false
			banksStatus[bank] = err.Error()
		} else {
			banksStatus[bank] = "ok"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{"status": overall, "banks": banksStatus})
}

func (s *Server) getRuns(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 {
		limit = 20
	}

	runs, err := s.repo.ListRuns(limit)
	if err != nil {
		s.logger.Error("failed to list runs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs"})
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) getPendingTransfers(c *gin.Context) {
	transfers, err := s.repo.ListPendingTransfers()
	if err != nil {
		s.logger.Error("failed to list pending transfers", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch pending transfers"})
		return
	}

	c.JSON(http.StatusOK, transfers)
}

// balanceResponse is one account in the live balance snapshot
type balanceResponse struct {
	Bank     string  `json:"bank"`
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
	Main     bool    `json:"main"`
}

func (s *Server) getBalances(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	var balances []balanceResponse
	errors := make(map[string]string)

	for _, connector := range s.registry.GetAll() {
		accounts, err := connector.ListAccounts(ctx)
		if err != nil {
			errors[connector.Name()] = err.Error()
			continue
		}
		for _, acct := range accounts {
			balances = append(balances, balanceResponse{
				Bank:     acct.Bank,
				ID:       acct.ID,
				Name:     acct.Name,
				Currency: acct.Currency,
				Balance:  acct.Balance,
				Main:     acct.Main,
			})
		}
	}

	resp := gin.H{"balances": balances}
	if len(errors) > 0 {
		resp["errors"] = errors
	}

	c.JSON(http.StatusOK, resp)
}

type runRequest struct {
	DryRun bool `json:"dry_run"`
	Force  bool `json:"force"`
}

func (s *Server) postReconcile(c *gin.Context) {
	var req runRequest
	_ = c.ShouldBindJSON(&req) // empty body means live run

	result, err := s.orchestrator.Run(c.Request.Context(), reconcile.Options{DryRun: req.DryRun})
	if err != nil {
		s.logger.Error("reconciliation run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) postConsolidate(c *gin.Context) {
	var req runRequest
	_ = c.ShouldBindJSON(&req)

	plan, err := s.consolidator.Run(c.Request.Context(), consolidate.Options{
		DryRun: req.DryRun,
		Force:  req.Force,
	})
	if err != nil {
		s.logger.Error("consolidation run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, plan)
}
