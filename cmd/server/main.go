package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/stationos/internal/advisor"
	"github.com/langchou/stationos/internal/api/handlers"
	"github.com/langchou/stationos/internal/config"
	"github.com/langchou/stationos/internal/decision"
	"github.com/langchou/stationos/internal/executor"
	"github.com/langchou/stationos/internal/inbox"
	"github.com/langchou/stationos/internal/models"
	"github.com/langchou/stationos/internal/monitoring"
	"github.com/langchou/stationos/internal/repository"
	"github.com/langchou/stationos/internal/reroute"
	"github.com/langchou/stationos/internal/service"
	"github.com/langchou/stationos/internal/state"
	"github.com/langchou/stationos/internal/telemetry"
	"github.com/langchou/stationos/pkg/events"
	"github.com/langchou/stationos/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting StationOS", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tm := telemetry.New(reg)

	// 站点与决策日志
	stations := repository.NewMemoryStationStore(repository.DefaultStations())
	decisionLog := repository.NewMemoryDecisionLog()

	// 连接数据库（可选）
	var (
		archiveSvc service.Archiver
		archive    *repository.Archive
		sink       *service.FailureSink
	)
	if cfg.DatabaseURL != "" {
		db, err := repository.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect database", zap.Error(err))
		}
		defer db.Close()

		// 执行数据库迁移
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Info("Database migrated successfully")

		archive = repository.NewArchive(db, logger, func(f *models.Failure) {
			sink.RecordPersistenceFailure(f)
		})
		archiveSvc = archive
	} else {
		logger.Info("DATABASE_URL not set, archive disabled")
	}

	// 失败记录先于归档协程创建，归档失败回调总能拿到 sink
	sink = service.NewFailureSink(decisionLog, archiveSvc, tm)
	if archive != nil {
		go archive.Run(context.Background())
	}

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run(ctx)

	// 事件发布：WebSocket + Redis（可选）
	publishers := events.Multi{events.NewHubPublisher(wsHub)}
	if cfg.RedisAddr != "" {
		redisPub, err := events.NewRedisPublisher(ctx, events.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.Error("Redis unavailable, publishing to websocket only", zap.Error(err))
		} else {
			defer redisPub.Close()
			publishers = append(publishers, redisPub)
		}
	}

	// 智能顾问（可选）
	var adv advisor.Advisor
	if cfg.AdvisorAPIKey != "" {
		adv = advisor.NewLLMClient(advisor.LLMConfig{
			APIKey:  cfg.AdvisorAPIKey,
			BaseURL: cfg.AdvisorBaseURL,
			Model:   cfg.AdvisorModel,
			Timeout: cfg.AdvisorTimeout,
		})
		logger.Info("Smart advisor enabled")
	}

	// 执行器
	exec := executor.New(executor.Config{
		Reroute:         executor.Endpoint{URL: cfg.RerouteWebhookURL, Token: cfg.RerouteAPIToken},
		Maintenance:     executor.Endpoint{URL: cfg.MaintenanceWebhookURL, Token: cfg.MaintenanceAPIToken},
		DemoDriverPhone: cfg.DemoDriverPhone,
		MaxAttempts:     cfg.NotifyMaxAttempts,
		InitialBackoff:  cfg.NotifyBackoffInitial,
		Timeout:         cfg.NotifyTimeout,
		RerouteConfidence: map[models.Confidence]float64{
			models.ConfidenceHigh:   cfg.RerouteConfidenceHigh,
			models.ConfidenceMedium: cfg.RerouteConfidenceMedium,
			models.ConfidenceLow:    cfg.RerouteConfidenceLow,
		},
		DefaultRerouteConfidence: cfg.RerouteConfidenceDefault,
	}, stations, reroute.NewSelector(stations), sink, logger)

	// 决策引擎
	lifecycle := state.NewLifecycle(func(id string, from, to models.DecisionStatus) {
		logger.Debug("Decision status changed",
			zap.String("decision_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	})
	engine := decision.NewEngine(adv, exec, decisionLog, lifecycle, decision.ConfidenceScores{
		High:   cfg.ConfidenceScoreHigh,
		Medium: cfg.ConfidenceScoreMedium,
		Low:    cfg.ConfidenceScoreLow,
	}, logger)

	// 站点服务
	stationService := service.NewStationService(
		logger,
		stations,
		decisionLog,
		monitoring.NewDeriver(time.Now),
		engine,
		publishers,
		archiveSvc,
		tm,
		cfg.DecisionLogView,
	)
	wsHub.SetSnapshotProvider(func() interface{} {
		return stationService.Stations()
	})

	// 维修工单与改道通知接收端
	inboxService := inbox.NewService(
		logger,
		repository.NewMemoryTicketStore(),
		repository.NewMemoryRerouteHistory(),
		state.NewTicketLifecycle(),
		inbox.NewForwarder(cfg.MaintenanceForwardURL, cfg.NotifyTimeout),
		inbox.NewForwarder(cfg.RerouteForwardURL, cfg.NotifyTimeout),
		publishers,
		tm,
	)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(logger, stationService, wsHub)
	handler.SetInbox(inboxService, cfg.MaintenanceAPIToken, cfg.RerouteAPIToken)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(tm.Middleware())

	// 注册路由
	handler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止推送并排空归档队列
	cancel()
	if archive != nil {
		archive.Close()
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
