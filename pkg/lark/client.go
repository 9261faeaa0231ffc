package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"HibiscusMeet/pkg/errors"
)

// 提前 10 分钟刷新 tenant access token
const tokenRefreshMargin = 10 * time.Minute

// Config 飞书开放平台应用配置
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string // 默认 https://open.feishu.cn
	Timeout   time.Duration
}

// tokenCache holds the cached tenant access token and its expiry instant.
type tokenCache struct {
	token  string
	expiry time.Time
}

func (t tokenCache) valid(now time.Time) bool {
	return t.token != "" && now.Before(t.expiry)
}

// Client calls the Lark open API. The token cache is process-wide state;
// refresh is guarded by a mutex so concurrent callers trigger one fetch.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	token tokenCache

	now func() time.Time
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://open.feishu.cn"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		now:    time.Now,
	}
}

// apiResponse Lark 统一响应结构
type apiResponse struct {
	Code              int             `json:"code"`
	Msg               string          `json:"msg"`
	TenantAccessToken string          `json:"tenant_access_token,omitempty"`
	Expire            int64           `json:"expire,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
}

// tenantAccessToken returns the cached token, refreshing it when absent or
// within the refresh margin of expiry.
func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.valid(c.now()) {
		return c.token.token, nil
	}

	if c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		return "", errors.Upstream(nil, "lark app credentials not configured")
	}

	resp, err := c.postJSON(ctx, "/open-apis/auth/v3/tenant_access_token/internal", "", map[string]string{
		"app_id":     c.cfg.AppID,
		"app_secret": c.cfg.AppSecret,
	})
	if err != nil {
		return "", errors.Upstream(err, "lark authentication failed")
	}
	if resp.Code != 0 {
		return "", errors.Upstream(nil, fmt.Sprintf("failed to get tenant access token: %s", resp.Msg))
	}

	c.token = tokenCache{
		token:  resp.TenantAccessToken,
		expiry: c.now().Add(time.Duration(resp.Expire)*time.Second - tokenRefreshMargin),
	}
	return c.token.token, nil
}

// TaskDetails 创建远端任务的字段
type TaskDetails struct {
	Title       string
	Description string
	DueDate     string // RFC3339，可空
	AssigneeIDs []string
}

// CreateTaskResult 创建结果
type CreateTaskResult struct {
	LarkTaskID string          `json:"larkTaskId"`
	Data       json.RawMessage `json:"data"`
}

// CreateTask 在飞书创建任务，返回远端任务 ID
func (c *Client) CreateTask(ctx context.Context, details TaskDetails) (*CreateTaskResult, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"summary": details.Title,
		"description": map[string]string{
			"text": details.Description,
			"type": "text",
		},
	}
	if details.DueDate != "" {
		due, err := time.Parse(time.RFC3339, details.DueDate)
		if err != nil {
			return nil, errors.BadRequest("invalid due date: " + details.DueDate)
		}
		payload["due"] = map[string]any{
			"timestamp":  strconv.FormatInt(due.Unix(), 10),
			"is_all_day": false,
		}
	}
	if len(details.AssigneeIDs) > 0 {
		collaborators := make([]map[string]string, 0, len(details.AssigneeIDs))
		for _, id := range details.AssigneeIDs {
			collaborators = append(collaborators, map[string]string{"id": id, "type": "user"})
		}
		payload["collaborators"] = collaborators
	}

	resp, err := c.postJSON(ctx, "/open-apis/task/v1/tasks", token, payload)
	if err != nil {
		return nil, errors.Upstream(err, "lark task creation failed")
	}
	if resp.Code != 0 {
		return nil, errors.Upstream(nil, fmt.Sprintf("failed to create lark task: %s", resp.Msg))
	}

	var data struct {
		Task struct {
			ID string `json:"id"`
		} `json:"task"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, errors.Upstream(err, "unexpected lark task response")
	}
	return &CreateTaskResult{LarkTaskID: data.Task.ID, Data: resp.Data}, nil
}

// CalendarEventDetails 创建日历事件的字段
type CalendarEventDetails struct {
	Summary     string
	Description string
	StartTime   string // RFC3339
	EndTime     string // RFC3339
	Attendees   []string
}

// CreateCalendarEvent 在主日历创建事件
func (c *Client) CreateCalendarEvent(ctx context.Context, details CalendarEventDetails) (json.RawMessage, error) {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	start, err := time.Parse(time.RFC3339, details.StartTime)
	if err != nil {
		return nil, errors.BadRequest("invalid start time: " + details.StartTime)
	}
	end, err := time.Parse(time.RFC3339, details.EndTime)
	if err != nil {
		return nil, errors.BadRequest("invalid end time: " + details.EndTime)
	}

	payload := map[string]any{
		"summary":     details.Summary,
		"description": details.Description,
		"start_time":  map[string]string{"timestamp": strconv.FormatInt(start.Unix(), 10)},
		"end_time":    map[string]string{"timestamp": strconv.FormatInt(end.Unix(), 10)},
	}
	if len(details.Attendees) > 0 {
		attendees := make([]map[string]string, 0, len(details.Attendees))
		for _, id := range details.Attendees {
			attendees = append(attendees, map[string]string{"type": "user", "user_id": id})
		}
		payload["attendee_ability"] = "can_see_others"
		payload["attendees"] = attendees
	}

	resp, err := c.postJSON(ctx, "/open-apis/calendar/v4/calendars/primary/events", token, payload)
	if err != nil {
		return nil, errors.Upstream(err, "lark calendar event creation failed")
	}
	if resp.Code != 0 {
		return nil, errors.Upstream(nil, fmt.Sprintf("failed to create lark calendar event: %s", resp.Msg))
	}
	return resp.Data, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("decode lark response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("lark http %d: %s", resp.StatusCode, api.Msg)
	}
	return &api, nil
}
