package handlers

import (
	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/cache"
	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/lark"
	"HibiscusMeet/pkg/llm"
	"HibiscusMeet/pkg/metrics"
	"HibiscusMeet/pkg/middleware"
	"HibiscusMeet/pkg/queue"
	"HibiscusMeet/pkg/sse"
	stores "HibiscusMeet/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handlers struct {
	db        *gorm.DB
	publisher queue.Publisher
	lark      *lark.Client
	ai        llm.Chat
	store     stores.Store
	hub       *sse.Hub
	cache     cache.Cache
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewHandlers(db *gorm.DB, publisher queue.Publisher, larkClient *lark.Client, ai llm.Chat, store stores.Store, hub *sse.Hub, m *metrics.Metrics, logger *zap.Logger) *Handlers {
	return &Handlers{
		db:        db,
		publisher: publisher,
		lark:      larkClient,
		ai:        ai,
		store:     store,
		hub:       hub,
		metrics:   m,
		logger:    logger,
	}
}

// WithCache 挂上共享缓存，幂等键存到这里（redis 后端可跨实例）
func (h *Handlers) WithCache(c cache.Cache) *Handlers {
	h.cache = c
	return h
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(config.GlobalConfig.APIPrefix)

	// Register Global Singleton DB
	r.Use(middleware.InjectDB(h.db))
	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerAuthRoutes(r)
	h.registerAudioRoutes(r)
	h.registerTranscriptionRoutes(r)
	h.registerTaskRoutes(r)
	h.registerLarkRoutes(r)
	h.registerAIRoutes(r)
}

// User Module
func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	auth := r.Group("auth")
	{
		auth.POST("/register", h.handleUserSignup)

		auth.POST("/login", h.handleUserSignin)

		auth.GET("/info", middleware.AuthRequired, h.handleUserInfo)
	}
}

// Audio Module
func (h *Handlers) registerAudioRoutes(r *gin.RouterGroup) {
	audio := r.Group("audio")
	audio.Use(middleware.AuthRequired)
	{
		audio.POST("/upload", h.UploadAudio)

		audio.GET("/:id", h.GetAudioRecording)

		audio.GET("/user/:userId", h.ListUserAudioRecordings)
	}
}

// Transcription Module
func (h *Handlers) registerTranscriptionRoutes(r *gin.RouterGroup) {
	tr := r.Group("transcription")
	tr.Use(middleware.AuthRequired)
	{
		tr.POST("/transcribe/:audioId", h.StartTranscription)

		tr.GET("/:id/status", h.GetTranscriptionStatus)

		tr.GET("/:id/stream", h.StreamTranscriptionStatus)
	}
}

// Task Module
func (h *Handlers) registerTaskRoutes(r *gin.RouterGroup) {
	tasks := r.Group("tasks")
	tasks.Use(middleware.AuthRequired)
	{
		tasks.POST("", h.CreateTask)

		tasks.GET("", h.ListTasks)

		tasks.GET("/:id", h.GetTask)

		tasks.PUT("/:id", h.UpdateTask)

		tasks.DELETE("/:id", h.DeleteTask)

		tasks.GET("/audio/:audioId", h.ListTasksByAudio)
	}
}

// Lark Module
func (h *Handlers) registerLarkRoutes(r *gin.RouterGroup) {
	larkGroup := r.Group("lark")
	{
		// 回调由签名校验保护，不走 JWT
		larkGroup.POST("/webhooks/event_callback", h.LarkWebhook)

		// 外发写操作加幂等保护，避免重试在飞书刷出重复任务
		idem := middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{Cache: h.cache})

		larkGroup.POST("/tasks", middleware.AuthRequired, idem, h.CreateLarkTask)

		larkGroup.POST("/calendar/events", middleware.AuthRequired, idem, h.CreateLarkCalendarEvent)
	}
}

// AI Module
func (h *Handlers) registerAIRoutes(r *gin.RouterGroup) {
	ai := r.Group("ai")
	ai.Use(middleware.AuthRequired)
	{
		ai.POST("/summarize", h.Summarize)

		ai.POST("/sentiment", h.AnalyzeSentiment)
	}
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.POST("/rate-limiter/config", middleware.AuthRequired, h.UpdateRateLimiterConfig)

		system.GET("/health", h.HealthCheck)
	}
}

// currentUserID 从上下文取当前登录用户
func currentUserID(c *gin.Context) string {
	return models.CurrentUserID(c)
}
