package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/equipment-console/internal/apiclient"
	"github.com/otcheredev/equipment-console/internal/authprovider"
	"github.com/otcheredev/equipment-console/internal/cache"
	"github.com/otcheredev/equipment-console/internal/config"
	"github.com/otcheredev/equipment-console/internal/database"
	"github.com/otcheredev/equipment-console/internal/handlers"
	"github.com/otcheredev/equipment-console/internal/middleware"
	"github.com/otcheredev/equipment-console/internal/query"
	"github.com/otcheredev/equipment-console/internal/repository"
	"github.com/otcheredev/equipment-console/internal/services"
	"github.com/otcheredev/equipment-console/internal/session"
	"github.com/otcheredev/equipment-console/internal/tenant"
	"github.com/otcheredev/equipment-console/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting equipment console")

	// Connect to the membership database
	dbConfig := database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		DBName:      cfg.Database.DBName,
		SSLMode:     cfg.Database.SSLMode,
		LogLevel:    cfg.Database.LogLevel,
		AutoMigrate: cfg.Database.AutoMigrate,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Sessions, tenants and query results share one cache backend
	var cacheImpl interface {
		cache.Cache
		Close() error
	}
	if cfg.Cache.Type == "redis" {
		cacheImpl, err = cache.NewRedisCache(cache.RedisOptions{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "console",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis cache initialized")
	} else {
		cacheImpl = cache.NewMemoryCache()
		log.Info().Msg("Memory cache initialized")
	}
	defer cacheImpl.Close()

	// Repositories
	membershipRepo := repository.NewMembershipRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)

	// Sessions and tenants
	authClient := authprovider.NewClient(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Auth.Timeout)
	tenantCache := tenant.NewCache(cacheImpl, cfg.Session.TTL)
	sessionStore := session.NewStore(authClient, cacheImpl, cfg.Session.TTL,
		session.OnRefresh(tenantCache.Touch))
	tenantResolver := tenant.NewResolver(membershipRepo)

	// Equipment API
	gateway := apiclient.NewGateway(cfg.API.BaseURL, session.ContextProvider{}, tenant.ContextSource{},
		apiclient.WithTimeout(cfg.API.Timeout))
	queries := query.New(cacheImpl, cfg.Query.StaleTime,
		query.WithRetry(cfg.Query.Retry, time.Second),
		query.WithRetryable(services.RetryableRead))

	// Services
	authService := services.NewAuthService(sessionStore, tenantCache, tenantResolver, auditRepo)
	groupService := services.NewEquipmentGroupService(gateway, queries, auditRepo)

	// Handlers
	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": handlers.PingFunc(database.Ping),
		"cache":    cacheImpl,
	})
	loginHandler := handlers.NewLoginHandler(authService, handlers.CookieConfig{
		Name:   cfg.Session.CookieName,
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.Secure,
	})
	groupHandler := handlers.NewEquipmentGroupHandler(groupService)
	apiHandler := handlers.NewAPIHandler(groupService, auditRepo)
	auth := middleware.NewAuth(sessionStore, tenantCache, cfg.Session.CookieName)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Login
	r.Get("/login", loginHandler.Form)
	r.Post("/login", loginHandler.Login)

	// Pages (require a session)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePage)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/master/equipment-groups", http.StatusSeeOther)
		})
		r.Post("/logout", loginHandler.Logout)

		r.Get("/master/equipment-groups", groupHandler.Page)
		r.Post("/master/equipment-groups", groupHandler.Save)
		r.Post("/master/equipment-groups/{id}/delete", groupHandler.Delete)
	})

	// JSON API
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   []string{"Content-Length", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Use(auth.RequireAPI)

		r.Get("/equipment-groups", apiHandler.ListGroups)
		r.Post("/equipment-groups", apiHandler.CreateGroup)
		r.Get("/equipment-groups/{id}", apiHandler.GetGroup)
		r.Patch("/equipment-groups/{id}", apiHandler.UpdateGroup)
		r.Delete("/equipment-groups/{id}", apiHandler.DeleteGroup)
		r.Get("/equipment-groups/{id}/audit", apiHandler.GroupAuditLogs)
		r.Get("/audit-logs", apiHandler.AuditLogs)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
