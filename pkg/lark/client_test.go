package lark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(Config{
		AppID:     "app",
		AppSecret: "secret",
		BaseURL:   srv.URL,
	}, zap.NewNop())
	return c, srv
}

func TestTenantAccessTokenCached(t *testing.T) {
	var fetches int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/open-apis/auth/v3/tenant_access_token/internal" {
			atomic.AddInt64(&fetches, 1)
			json.NewEncoder(w).Encode(map[string]any{
				"code":                0,
				"tenant_access_token": "tok-1",
				"expire":              7200,
			})
			return
		}
		http.NotFound(w, r)
	})

	ctx := context.Background()

	// 并发取 token，只应拉取一次
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.tenantAccessToken(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), atomic.LoadInt64(&fetches))
}

func TestTenantAccessTokenRefreshedAfterExpiry(t *testing.T) {
	var fetches int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&fetches, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"code":                0,
			"tenant_access_token": map[int64]string{1: "tok-1", 2: "tok-2"}[n],
			"expire":              7200,
		})
	})

	now := time.Now()
	c.now = func() time.Time { return now }

	tok, err := c.tenantAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// 未过期时继续复用
	now = now.Add(time.Hour)
	tok, err = c.tenantAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// 进入提前刷新窗口后重新拉取
	now = now.Add(time.Hour)
	tok, err = c.tenantAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int64(2), atomic.LoadInt64(&fetches))
}

func TestCreateTask(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/open-apis/auth/v3/tenant_access_token/internal":
			json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "tok", "expire": 7200})
		case "/open-apis/task/v1/tasks":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "review minutes", payload["summary"])
			json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{"task": map[string]any{"id": "lark-42"}},
			})
		default:
			http.NotFound(w, r)
		}
	})

	res, err := c.CreateTask(context.Background(), TaskDetails{
		Title:       "review minutes",
		Description: "from meeting",
		DueDate:     time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		AssigneeIDs: []string{"u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "lark-42", res.LarkTaskID)
}

func TestCreateTaskUpstreamError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/open-apis/auth/v3/tenant_access_token/internal" {
			json.NewEncoder(w).Encode(map[string]any{"code": 0, "tenant_access_token": "tok", "expire": 7200})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"code": 99991, "msg": "permission denied"})
	})

	_, err := c.CreateTask(context.Background(), TaskDetails{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestVerifySignature(t *testing.T) {
	secret := "app-secret"
	ts := "1724900000"
	body := []byte(`{"header":{"event_type":"task.task.updated_v1"}}`)

	sig := Signature(secret, ts, body)
	assert.True(t, VerifySignature(secret, ts, body, sig))
	assert.False(t, VerifySignature(secret, ts, body, "deadbeef"))
	assert.False(t, VerifySignature(secret, "1724900001", body, sig))
	assert.False(t, VerifySignature("other", ts, body, sig))
}
