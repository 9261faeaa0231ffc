package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "HibiscusMeet/internal/handler"
	"HibiscusMeet/internal/models"
	"HibiscusMeet/internal/worker"
	"HibiscusMeet/pkg/backup"
	"HibiscusMeet/pkg/cache"
	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/lark"
	"HibiscusMeet/pkg/llm"
	"HibiscusMeet/pkg/logger"
	"HibiscusMeet/pkg/metrics"
	"HibiscusMeet/pkg/middleware"
	"HibiscusMeet/pkg/queue"
	"HibiscusMeet/pkg/scheduler"
	"HibiscusMeet/pkg/sse"
	stores "HibiscusMeet/pkg/storage"
	"HibiscusMeet/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// hubNotifier 把 worker 的状态变更转成 SSE 推送
type hubNotifier struct {
	hub *sse.Hub
}

func (n hubNotifier) TranscriptionUpdated(tr *models.Transcription) {
	n.hub.PublishJSON("transcription:"+tr.ID, tr)
}

func main() {
	// 1. 配置
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig

	// 2. 日志
	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	// 3. 数据库
	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		log.Fatal("init database failed", zap.Error(err))
	}
	if err := models.Migrate(db); err != nil {
		log.Fatal("migrate database failed", zap.Error(err))
	}

	// 4. 缓存
	appCache, err := cache.NewCache(cfg.Cache)
	if err != nil {
		log.Fatal("init cache failed", zap.Error(err))
	}
	defer appCache.Close()

	// 5. 存储后端
	store, err := stores.New(cfg.StorageType, cfg.UploadAudioPath)
	if err != nil {
		log.Fatal("init storage failed", zap.Error(err))
	}

	// 6. 消息队列
	q, err := queue.Dial(cfg.AMQPURL, cfg.TranscriptionQueue, log)
	if err != nil {
		log.Fatal("dial amqp failed", zap.Error(err))
	}
	defer q.Close()

	// 7. AI 客户端：转写固定走 OpenAI 兼容接口，文本接口可切 Ollama
	openaiClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:       cfg.OpenAIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		WhisperModel: cfg.WhisperModel,
		ChatModel:    cfg.ChatModel,
		Timeout:      cfg.OutboundTimeout,
	})
	if err != nil {
		log.Fatal("init openai client failed", zap.Error(err))
	}
	var chat llm.Chat = openaiClient
	if cfg.AIProvider == "ollama" {
		chat = llm.NewOllamaChat(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OutboundTimeout)
	}

	// 8. 飞书客户端
	larkClient := lark.NewClient(lark.Config{
		AppID:     cfg.LarkAppID,
		AppSecret: cfg.LarkAppSecret,
		BaseURL:   cfg.LarkBaseURL,
		Timeout:   cfg.OutboundTimeout,
	}, log)

	// 9. SSE 推送
	hub := sse.NewHub(30 * time.Second)

	// 10. 转写 worker
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.Default()
	w := worker.New(db, store, openaiClient, m, log).WithNotifier(hubNotifier{hub: hub})
	go func() {
		if err := q.Consume(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("queue consumer stopped", zap.Error(err))
		}
	}()

	// 11. 定时任务：卡死转写回收、数据库备份
	sched := scheduler.New()
	defer sched.Stop()
	sched.Every(5*time.Minute, func(ctx context.Context) {
		worker.ReapStale(ctx, db, cfg.StaleProcessingAge, log)
	})

	cr := scheduler.NewCron(nil)
	if err := backup.StartBackupScheduler(cr); err != nil {
		log.Fatal("register backup job failed", zap.Error(err))
	}
	cr.Start()
	defer cr.Stop()

	// 12. HTTP 服务
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLog())
	engine.Use(middleware.CORS(cfg.CORSOrigins))
	engine.Use(middleware.RateLimitMiddleware())
	engine.Use(metrics.Middleware(m))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := handlers.NewHandlers(db, q, larkClient, chat, store, hub, m, log).WithCache(appCache)
	h.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: engine,
	}
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// 13. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
}
