//go:generate swag init -g cmd/api/main.go -o api/swagger --parseDependency --parseInternal

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "backoffice/api/swagger" // swagger docs
	"backoffice/internal/auth"
	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/handler"
	"backoffice/internal/lock"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/middleware"
	"backoffice/internal/pdf"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/internal/websocket"
)

const (
	janitorInterval = time.Hour
	idempotencyTTL  = 24 * time.Hour
)

// @title           Back-office API
// @version         1.0
// @description     Invoices, proformas, delivery notes, clients and products for a distribution business.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	log.Info("connected to PostgreSQL")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.SeedRolesAndPermissions(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to seed roles")
	}
	if err := database.SeedAdmin(ctx, db, log, cfg.SeedAdminUsername, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		log.WithError(err).Fatal("failed to seed admin")
	}

	var locker lock.Locker = lock.Noop{}
	if cfg.RedisAddr != "" {
		rdb, err := lock.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockTTL)
		log.WithField("addr", cfg.RedisAddr).Info("document locks backed by redis")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	m := metrics.New(nil)
	location := cfg.Location()
	infra := &service.Infra{
		Tx:       repository.NewTransactionManager(db),
		Audit:    repository.NewAuditRepository(db),
		Locker:   locker,
		Metrics:  m,
		Events:   wsHub,
		Log:      log,
		Location: location,
		Now:      time.Now,
	}
	tokens := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL)
	renderer := pdf.NewRenderer(cfg.Company, cfg.Currency)

	// Set up dependencies (Repository -> Service -> Handler)
	invoiceRepo := repository.NewInvoiceRepository(db)
	clientRepo := repository.NewClientRepository(db)
	productRepo := repository.NewProductRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	roleService := service.NewRoleService(repository.NewRoleRepository(db), infra)
	userService := service.NewUserService(repository.NewUserRepository(db), roleService, tokens, cfg.RefreshTokenTTL, infra)
	clientService := service.NewClientService(clientRepo, infra)
	productService := service.NewProductService(productRepo, infra)
	invoiceService := service.NewInvoiceService(invoiceRepo, clientRepo, productRepo, renderer, infra)
	proformaService := service.NewProformaService(repository.NewProformaRepository(db), invoiceRepo, clientRepo, productRepo, renderer, infra)
	noteService := service.NewDeliveryNoteService(repository.NewDeliveryNoteRepository(db), clientRepo, productRepo, renderer, infra)
	auditService := service.NewAuditService(infra.Audit)

	authn := middleware.NewAuthenticator(tokens, roleService.PermissionsForRole, log)
	secureCookies := cfg.GinMode == gin.ReleaseMode

	if err := handler.RegisterValidators(); err != nil {
		log.WithError(err).Fatal("failed to register validators")
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), m.Middleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", middleware.IdempotencyHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", "Idempotent-Replayed"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/metrics", m.Handler())
	router.GET("/ws", websocket.ServeWs(wsHub, tokens))

	handler.RegisterAPI(router, authn,
		middleware.NewIdempotency(idempotencyRepo, log),
		handler.NewAuthHandler(userService, handler.CookieSettings{
			AccessTTL:  cfg.AccessTokenTTL,
			RefreshTTL: cfg.RefreshTokenTTL,
			Secure:     secureCookies,
		}),
		handler.NewUserHandler(userService, authn),
		handler.NewClientHandler(clientService, authn),
		handler.NewProductHandler(productService, authn),
		handler.NewInvoiceHandler(invoiceService, authn, func() string {
			return time.Now().In(location).Format("20060102")
		}),
		handler.NewProformaHandler(proformaService, authn),
		handler.NewDeliveryNoteHandler(noteService, authn),
		handler.NewTotalsHandler(),
		handler.NewRoleHandler(roleService, authn),
		handler.NewAuditHandler(auditService, authn),
	)

	go runJanitor(ctx, log, userService, idempotencyRepo)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// runJanitor drops expired refresh tokens and stale idempotency records until
// ctx is cancelled.
func runJanitor(ctx context.Context, log *logrus.Logger, users service.UserService, keys repository.IdempotencyRepository) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := users.PurgeExpiredTokens(ctx); err != nil {
				logger.LogError(log, "main", "runJanitor", nil, err)
			} else if n > 0 {
				log.WithField("count", n).Info("purged expired refresh tokens")
			}
			if n, err := keys.PurgeOlderThan(ctx, time.Now().Add(-idempotencyTTL)); err != nil {
				logger.LogError(log, "main", "runJanitor", nil, err)
			} else if n > 0 {
				log.WithField("count", n).Info("purged idempotency keys")
			}
		}
	}
}
