package lark

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// 回调请求头
const (
	SignatureHeader = "X-Lark-Signature"
	TimestampHeader = "X-Lark-Request-Timestamp"
)

// Signature computes the HMAC-SHA256 hex digest over timestamp + raw body
// using the shared app secret.
func Signature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 校验回调签名
func VerifySignature(secret, timestamp string, body []byte, signature string) bool {
	expected := Signature(secret, timestamp, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// WebhookPayload 回调载荷外层结构
type WebhookPayload struct {
	Type      string `json:"type,omitempty"` // url_verification
	Challenge string `json:"challenge,omitempty"`
	Header    struct {
		EventType string `json:"event_type"`
	} `json:"header"`
	Event json.RawMessage `json:"event,omitempty"`
}

// IsURLVerification 是否为回调地址校验请求
func (p *WebhookPayload) IsURLVerification() bool {
	return p.Type == "url_verification"
}

// IsTaskEvent reports whether the event belongs to the task.* family.
func (p *WebhookPayload) IsTaskEvent() bool {
	return strings.HasPrefix(p.Header.EventType, "task.")
}

// IsCalendarEvent reports whether the event belongs to the calendar.* family.
func (p *WebhookPayload) IsCalendarEvent() bool {
	return strings.HasPrefix(p.Header.EventType, "calendar.")
}

// TaskEventObject task.* 事件里携带的任务对象
type TaskEventObject struct {
	TaskID      string `json:"task_id"`
	Summary     string `json:"summary"`
	Description struct {
		Text string `json:"text"`
	} `json:"description"`
}

// TaskEvent task.* 事件体
type TaskEvent struct {
	Object TaskEventObject `json:"object"`
}

// ParseTaskEvent 解析 task.* 事件体
func ParseTaskEvent(raw json.RawMessage) (*TaskEvent, error) {
	var ev TaskEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
