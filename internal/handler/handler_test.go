package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/llm"
	"HibiscusMeet/pkg/metrics"
	"HibiscusMeet/pkg/middleware"
	"HibiscusMeet/pkg/queue"
	"HibiscusMeet/pkg/sse"
	stores "HibiscusMeet/pkg/storage"
	"HibiscusMeet/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakePublisher 记录投递的任务，可注入失败
type fakePublisher struct {
	mu   sync.Mutex
	jobs []queue.TranscriptionJob
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, job queue.TranscriptionJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) published() []queue.TranscriptionJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.TranscriptionJob(nil), f.jobs...)
}

// fakeChat 固定应答
type fakeChat struct {
	summary   string
	sentiment llm.Sentiment
	err       error
}

func (f *fakeChat) Summarize(context.Context, string) (string, error) {
	return f.summary, f.err
}

func (f *fakeChat) AnalyzeSentiment(context.Context, string) (llm.Sentiment, error) {
	return f.sentiment, f.err
}

func testLogger() *zap.Logger { return zap.NewNop() }

// testMetrics 复用全局实例，避免 Prometheus 重复注册
func testMetrics() *metrics.Metrics { return metrics.Default() }

type testEnv struct {
	engine *gin.Engine
	db     *gorm.DB
	pub    *fakePublisher
	chat   *fakeChat
	store  stores.Store
	token  string
	userID string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config.GlobalConfig = &config.Config{
		APIPrefix:          "/api/v1",
		JWTSecret:          "test-secret",
		JWTExpireHours:     1,
		UploadMaxBytes:     50 * 1024 * 1024,
		TranscriptionQueue: "audio-transcription",
		LarkAppSecret:      "lark-secret",
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := util.InitDatabase("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	pub := &fakePublisher{}
	chat := &fakeChat{summary: "a summary", sentiment: llm.Sentiment{Sentiment: "neutral", Score: 0}}
	store := stores.NewLocalStore(t.TempDir())
	hub := sse.NewHub(time.Second)

	h := NewHandlers(db, pub, nil, chat, store, hub, metrics.Default(), zap.NewNop())
	engine := gin.New()
	h.Register(engine)

	user := models.User{Email: "tester@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	token, err := middleware.GenerateToken(user.ID, user.Email)
	require.NoError(t, err)

	return &testEnv{
		engine: engine,
		db:     db,
		pub:    pub,
		chat:   chat,
		store:  store,
		token:  token,
		userID: user.ID,
	}
}

func (e *testEnv) setMaxUpload(t *testing.T, limit int64) {
	t.Helper()
	prev := config.GlobalConfig.UploadMaxBytes
	config.GlobalConfig.UploadMaxBytes = limit
	t.Cleanup(func() { config.GlobalConfig.UploadMaxBytes = prev })
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var body struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	if out != nil {
		require.NoError(t, json.Unmarshal(body.Data, out))
	}
}

func TestAuthFlow(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":     "New.User@Example.com",
		"password":  "password123",
		"firstName": "New",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var reg struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeData(t, rec, &reg)
	require.NotEmpty(t, reg.Token)
	require.Equal(t, "new.user@example.com", reg.User.Email)

	// 重复注册被拒
	rec = env.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":    "new.user@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "new.user@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{
		"email":    "new.user@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := setupEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
