package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/bodegalabs/bodega-server/api/rest"
	"github.com/bodegalabs/bodega-server/api/sse"
	"github.com/bodegalabs/bodega-server/audit"
	"github.com/bodegalabs/bodega-server/cache"
	"github.com/bodegalabs/bodega-server/config"
	dbadapter "github.com/bodegalabs/bodega-server/db"
	"github.com/bodegalabs/bodega-server/inventory"
	mw "github.com/bodegalabs/bodega-server/middleware"
	"github.com/bodegalabs/bodega-server/model"
	"github.com/bodegalabs/bodega-server/rfid"
	"github.com/bodegalabs/bodega-server/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.RFIDAPIKey == "" {
		logger.Warn("security.rfid_api_key is not set; the read ingestion endpoint will reject all readers")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	invSvc := inventory.NewService(db, c, logger, cfg.Inventory.SummaryCacheTTL)
	rfidSvc := rfid.NewService(db, c, pubsub, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("audit_prune", cfg.Audit.PruneInterval, func() {
		auditSvc.Prune(cfg.Audit.Retention)
	})
	// Warm the summary cache once the server is up; dashboards hit it first.
	sched.AddDelay("summary_warmup", cfg.Inventory.SummaryCacheTTL, func() {
		if _, err := invSvc.Summary(context.Background()); err != nil {
			logger.Warn("summary warmup failed", zap.Error(err))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	invH := apirest.NewInventoryHandler(invSvc, auditSvc)
	rfidH := apirest.NewRfidHandler(rfidSvc, auditSvc, cfg.Security)
	auditH := apirest.NewAuditHandler(db)

	authed := mw.Auth(cfg.Security, c)

	api := r.Group("/api")
	{
		invG := api.Group("/inventory")
		invG.Use(authed)
		invG.GET("", invH.List)
		invG.POST("", invH.Create)
		invG.GET("/summary", invH.Summary)
		invG.GET("/movements", invH.Movements)
		invG.GET("/:id", invH.Get)
		invG.PUT("/:id", invH.Update)
		invG.DELETE("/:id", invH.Delete)
		invG.POST("/:id/check-in", invH.CheckIn)
		invG.POST("/:id/check-out", invH.CheckOut)

		rfidG := api.Group("/rfid")
		rfidG.GET("/tags", authed, rfidH.ListTags)
		rfidG.POST("/tags", authed, rfidH.CreateTag)
		rfidG.GET("/tags/unknown", authed, rfidH.ListUnknownTags)
		rfidG.GET("/tags/:id", authed, rfidH.GetTag)
		rfidG.PUT("/tags/:id", authed, rfidH.UpdateTag)
		rfidG.DELETE("/tags/:id", authed, rfidH.DeleteTag)
		rfidG.POST("/tags/:id/enroll", authed, rfidH.Enroll)
		rfidG.DELETE("/tags/:id/enroll", authed, rfidH.Unenroll)
		rfidG.GET("/detections", authed, rfidH.ListDetections)

		// Readers authenticate with the shared API key, not a user session;
		// fixed readers can additionally be pinned to known addresses.
		rfidG.POST("/read", mw.IPWhitelist(cfg.Security.ReaderIPWhitelist), rfidH.Read)

		api.GET("/audit", authed, auditH.List)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/api/rfid/stream", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
