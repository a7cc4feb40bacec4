package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/foliotracker/backend/src/config"
	"github.com/username/foliotracker/backend/src/database"
	"github.com/username/foliotracker/backend/src/handlers"
	"github.com/username/foliotracker/backend/src/logger"
	"github.com/username/foliotracker/backend/src/processors"
	"github.com/username/foliotracker/backend/src/security"
	"github.com/username/foliotracker/backend/src/services"
	"github.com/username/foliotracker/backend/src/storage"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("FolioTracker backend server starting...")

	if len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}
	if config.Cfg.AuthPasswordHash == "" {
		logger.L.Error("AUTH_PASSWORD_HASH configuration missing.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	store := storage.NewStore(database.DB)
	portfolioStore, err := services.NewPortfolioStore(store)
	if err != nil {
		logger.L.Error("Failed to load portfolio state", "error", err)
		os.Exit(1)
	}

	authService := security.NewAuthService(config.Cfg.JWTSecret)

	columnMapper := processors.NewColumnMapper(config.Cfg.ColumnMatchThreshold)
	rowNormalizer := processors.NewRowNormalizer(config.Cfg.ReviewThreshold, config.Cfg.DefaultCurrency)

	mergeService := services.NewMergeService(portfolioStore, config.Cfg.DefaultCurrency, config.Cfg.PreserveUserClassification)
	importService := services.NewImportService(columnMapper, rowNormalizer, portfolioStore, mergeService)
	valuationService := services.NewValuationService(portfolioStore)
	ratesService := services.NewRatesService(portfolioStore, "")

	authHandler := handlers.NewAuthHandler(authService)
	importHandler := handlers.NewImportHandler(importService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioStore)
	valuationHandler := handlers.NewValuationHandler(valuationService)
	ratesHandler := handlers.NewRatesHandler(ratesService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "FolioTracker Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(authHandler.AuthMiddleware)

			r.Post("/imports", importHandler.HandleUpload)
			r.Get("/imports/{sessionID}", importHandler.HandleGetSession)
			r.Patch("/imports/{sessionID}/records/{recordIdx}", importHandler.HandleEditField)
			r.Delete("/imports/{sessionID}/records/{recordIdx}", importHandler.HandleRemoveRecord)
			r.Post("/imports/{sessionID}/confirm", importHandler.HandleConfirm)
			r.Post("/imports/{sessionID}/cancel", importHandler.HandleCancel)

			r.Get("/portfolio", portfolioHandler.HandleGetPortfolio)
			r.Put("/portfolio/free-cash", portfolioHandler.HandleSetFreeCash)
			r.Put("/portfolio/holdings/{instrumentID}", portfolioHandler.HandleEditHolding)
			r.Delete("/portfolio/holdings/{instrumentID}", portfolioHandler.HandleDeleteHolding)

			r.Get("/mappings", portfolioHandler.HandleListMappings)
			r.Put("/mappings/{instrumentID}", portfolioHandler.HandleSetMapping)
			r.Delete("/mappings/{instrumentID}", portfolioHandler.HandleDeleteMapping)

			r.Get("/valuation/report", valuationHandler.HandleGetReport)
			r.Get("/valuation/breakdown", valuationHandler.HandleGetBreakdown)
			r.Get("/valuation/summary", valuationHandler.HandleGetSummary)

			r.Get("/rates", ratesHandler.HandleListRates)
			r.Post("/rates", ratesHandler.HandleAddCurrency)
			r.Put("/rates/{currency}", ratesHandler.HandleSetRate)
			r.Delete("/rates/{currency}", ratesHandler.HandleRemoveCurrency)
			r.Post("/rates/refresh", ratesHandler.HandleRefresh)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
