package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/config"
	"github.com/dafibh/lendora/lendora-backend/internal/database"
	"github.com/dafibh/lendora/lendora-backend/internal/document"
	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/handler"
	"github.com/dafibh/lendora/lendora-backend/internal/messaging"
	"github.com/dafibh/lendora/lendora-backend/internal/middleware"
	"github.com/dafibh/lendora/lendora-backend/internal/observability"
	"github.com/dafibh/lendora/lendora-backend/internal/repository/postgres"
	"github.com/dafibh/lendora/lendora-backend/internal/repository/storage"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/dafibh/lendora/lendora-backend/docs"
)

// @title Lendora API
// @version 1.0
// @description Back office for a small lending business: loans, payments, invoices and documents.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply pending migrations before serving
	version, err := database.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Uint("version", version).Msg("Database schema up to date")

	// Connect to database
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("Connected to database")

	// Initialize repositories
	transactor := postgres.NewTransactor(pool)
	loanRepo := postgres.NewLoanRepository(pool)
	paymentRepo := postgres.NewLoanPaymentRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	lenderRepo := postgres.NewLenderRepository(pool)
	sequenceRepo := postgres.NewSequenceRepository(pool)
	documentRepo := postgres.NewDocumentRepository(pool)

	// Object storage is optional; without it documents are only returned, not kept
	var store domain.DocumentStore
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3DocumentStore(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize document storage")
		}
		store = s3Store
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Document storage enabled")
	} else {
		log.Warn().Msg("S3_BUCKET not set, document storage and logo uploads disabled")
	}

	// Initialize services
	loanService := service.NewLoanService(transactor, loanRepo, customerRepo, paymentRepo, sequenceRepo, lenderRepo)
	paymentService := service.NewLoanPaymentService(transactor, paymentRepo, loanRepo)
	invoiceService := service.NewInvoiceService(transactor, invoiceRepo, loanRepo, sequenceRepo, lenderRepo)
	customerService := service.NewCustomerService(customerRepo, loanRepo)
	lenderService := service.NewLenderService(lenderRepo, store)
	documentService := service.NewDocumentService(service.DocumentServiceDeps{
		LoanRepo:     loanRepo,
		CustomerRepo: customerRepo,
		PaymentRepo:  paymentRepo,
		InvoiceRepo:  invoiceRepo,
		LenderRepo:   lenderRepo,
		SequenceRepo: sequenceRepo,
		DocumentRepo: documentRepo,
		Renderer:     document.NewPDFRenderer(),
		Store:        store,
	})

	// Realtime events go to websocket clients and, when configured, NATS
	hub := websocket.NewHub()
	defer hub.CloseAll()
	publishers := []websocket.EventPublisher{hub}
	if cfg.NATSURL != "" {
		natsPublisher, err := messaging.Connect(ctx, cfg.NATSURL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer natsPublisher.Close()
		publishers = append(publishers, natsPublisher)
	}
	publisher := websocket.NewMultiPublisher(publishers...)
	loanService.SetEventPublisher(publisher)
	paymentService.SetEventPublisher(publisher)
	invoiceService.SetEventPublisher(publisher)
	customerService.SetEventPublisher(publisher)

	// Metrics
	metrics, err := observability.New(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}
	if shutdowner, ok := metrics.(interface{ Shutdown(context.Context) error }); ok {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdowner.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to flush metrics")
			}
		}()
	}
	loanService.SetMetrics(metrics)
	paymentService.SetMetrics(metrics)
	invoiceService.SetMetrics(metrics)

	// Monthly invoice cycle
	invoiceWorker := service.NewInvoiceWorker(invoiceService, log.Logger, service.InvoiceWorkerConfig{
		Interval:   cfg.InvoiceWorkerInterval,
		RunOnStart: true,
	})
	invoiceWorker.Start(ctx)
	defer invoiceWorker.Stop()

	// Authentication
	var auth echo.MiddlewareFunc
	var wsValidator websocket.TokenValidator
	if cfg.Auth0Domain == "" && cfg.IsDevelopment() {
		log.Warn().Msg("AUTH0_DOMAIN not set, every request runs as the development staff user")
		auth = middleware.DevAuthenticate("dev|staff")
	} else {
		claimsValidator, err := middleware.NewAuth0Validator(cfg.Auth0Domain, cfg.Auth0Audience)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create token validator")
		}
		auth = middleware.NewAuthMiddlewareWithValidator(claimsValidator).Authenticate()
		wsValidator = websocket.NewStaffTokenValidator(claimsValidator)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer rateLimiter.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders:    []string{echo.HeaderContentDisposition, "X-Document-Number"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return handler.NewServiceUnavailableError(c, "Database unavailable")
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// API docs
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.GET("/openapi.json", handler.ServeOpenAPI3Spec)

	// Realtime updates
	if wsValidator != nil {
		wsHandler := handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins)
		e.GET("/ws", wsHandler.HandleWS)
	}

	// Register API routes
	handler.RegisterRoutes(e, handler.Handlers{
		Calculator: handler.NewCalculatorHandler(),
		Lender:     handler.NewLenderHandler(lenderService),
		Customer:   handler.NewCustomerHandler(customerService),
		Loan:       handler.NewLoanHandler(loanService, invoiceService),
		Payment:    handler.NewLoanPaymentHandler(paymentService),
		Invoice:    handler.NewInvoiceHandler(invoiceService),
		Document:   handler.NewDocumentHandler(documentService),
	}, auth, middleware.RateLimitMiddleware(rateLimiter))

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			event := log.Info()
			if res.Status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("staff_id", middleware.GetStaffID(c)).
				Msg("request")

			return nil
		}
	}
}
