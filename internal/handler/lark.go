package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/lark"
	"HibiscusMeet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type larkTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"` // RFC3339
	AssigneeIDs []string `json:"assigneeIds"`
	TaskID      string   `json:"taskId"` // 可选：关联本地任务，缺省字段取任务值并回写远端 ID
}

type larkCalendarEventRequest struct {
	Summary     string   `json:"summary" binding:"required"`
	Description string   `json:"description"`
	StartTime   string   `json:"startTime" binding:"required"` // RFC3339
	EndTime     string   `json:"endTime" binding:"required"`   // RFC3339
	Attendees   []string `json:"attendees"`
}

// CreateLarkTask 在飞书创建任务；带 taskId 时关联本地任务并回写远端 ID
func (h *Handlers) CreateLarkTask(c *gin.Context) {
	var req larkTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid lark task request", nil)
		return
	}

	details := lark.TaskDetails{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		AssigneeIDs: req.AssigneeIDs,
	}

	var task *models.Task
	if req.TaskID != "" {
		var local models.Task
		if err := h.db.First(&local, "id = ?", req.TaskID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				response.NotFound(c, "task not found")
				return
			}
			response.Fail(c, "can not load task", nil)
			return
		}
		task = &local

		// 请求里没给的字段用本地任务补齐
		if details.Title == "" {
			details.Title = local.Title
		}
		if details.Description == "" {
			details.Description = local.Description
		}
		if details.DueDate == "" && local.DueDate != nil {
			details.DueDate = local.DueDate.Format(time.RFC3339)
		}
		if len(details.AssigneeIDs) == 0 && local.AssigneeID != "" {
			details.AssigneeIDs = []string{local.AssigneeID}
		}
	}

	if details.Title == "" {
		response.Fail(c, "title is required", nil)
		return
	}

	result, err := h.lark.CreateTask(c.Request.Context(), details)
	if err != nil {
		h.metrics.RecordLarkAPICall("create_task", "error")
		h.logger.Error("lark task creation failed", zap.String("title", details.Title), zap.Error(err))
		response.Error(c, err)
		return
	}
	h.metrics.RecordLarkAPICall("create_task", "ok")

	out := gin.H{
		"larkTaskId": result.LarkTaskID,
		"data":       result.Data,
	}
	if task != nil {
		if err := h.db.Model(task).Update("lark_task_id", result.LarkTaskID).Error; err != nil {
			h.logger.Error("save lark task id failed",
				zap.String("task_id", task.ID),
				zap.String("lark_task_id", result.LarkTaskID),
				zap.Error(err))
		}
		out["taskId"] = task.ID
	}

	response.Created(c, "lark task created", out)
}

// CreateLarkCalendarEvent 在飞书主日历创建事件
func (h *Handlers) CreateLarkCalendarEvent(c *gin.Context) {
	var req larkCalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid calendar event request", nil)
		return
	}

	data, err := h.lark.CreateCalendarEvent(c.Request.Context(), lark.CalendarEventDetails{
		Summary:     req.Summary,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Attendees:   req.Attendees,
	})
	if err != nil {
		h.metrics.RecordLarkAPICall("create_calendar_event", "error")
		response.Error(c, err)
		return
	}
	h.metrics.RecordLarkAPICall("create_calendar_event", "ok")

	response.Created(c, "calendar event created", data)
}

// LarkWebhook 飞书事件回调
//
// 签名不对返回 401，其余处理错误一律 200 软确认，避免飞书无限重试。
func (h *Handlers) LarkWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Fail(c, "can not read webhook body", nil)
		return
	}

	var payload lark.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.metrics.RecordLarkWebhookEvent("malformed", "rejected")
		response.Fail(c, "malformed webhook payload", nil)
		return
	}

	// 回调地址校验请求不带签名
	if payload.IsURLVerification() {
		c.JSON(http.StatusOK, gin.H{"challenge": payload.Challenge})
		return
	}

	sig := c.GetHeader(lark.SignatureHeader)
	ts := c.GetHeader(lark.TimestampHeader)
	if !lark.VerifySignature(config.GlobalConfig.LarkAppSecret, ts, body, sig) {
		h.metrics.RecordLarkWebhookEvent(payload.Header.EventType, "bad_signature")
		h.logger.Warn("lark webhook signature rejected",
			zap.String("event_type", payload.Header.EventType))
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	switch {
	case payload.IsTaskEvent():
		h.handleLarkTaskEvent(c, &payload)
	case payload.IsCalendarEvent():
		h.metrics.RecordLarkWebhookEvent(payload.Header.EventType, "ignored")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		h.metrics.RecordLarkWebhookEvent(payload.Header.EventType, "ignored")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// handleLarkTaskEvent 远端任务变更覆盖本地标题和描述
//
// 本地找不到对应任务时当作无关事件确认掉。
func (h *Handlers) handleLarkTaskEvent(c *gin.Context, payload *lark.WebhookPayload) {
	eventType := payload.Header.EventType

	ev, err := lark.ParseTaskEvent(payload.Event)
	if err != nil || ev.Object.TaskID == "" {
		h.metrics.RecordLarkWebhookEvent(eventType, "soft_failed")
		h.logger.Warn("unparseable lark task event", zap.String("event_type", eventType), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	var task models.Task
	if err := h.db.First(&task, "lark_task_id = ?", ev.Object.TaskID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			h.metrics.RecordLarkWebhookEvent(eventType, "unmatched")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
		h.metrics.RecordLarkWebhookEvent(eventType, "soft_failed")
		h.logger.Error("lark webhook task lookup failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	updates := map[string]interface{}{}
	if ev.Object.Summary != "" {
		updates["title"] = ev.Object.Summary
	}
	if ev.Object.Description.Text != "" {
		updates["description"] = ev.Object.Description.Text
	}
	if len(updates) > 0 {
		if err := h.db.Model(&task).Updates(updates).Error; err != nil {
			h.metrics.RecordLarkWebhookEvent(eventType, "soft_failed")
			h.logger.Error("lark webhook task update failed",
				zap.String("task_id", task.ID),
				zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
	}

	h.metrics.RecordLarkWebhookEvent(eventType, "ok")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
