package handlers

import (
	"strconv"
	"time"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type taskRequest struct {
	Title            string `json:"title" binding:"required"`
	Description      string `json:"description"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	DueDate          string `json:"dueDate"` // RFC3339
	AssigneeID       string `json:"assigneeId"`
	AudioRecordingID string `json:"audioRecordingId"`
}

type taskUpdateRequest struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Status           *string `json:"status"`
	Priority         *string `json:"priority"`
	DueDate          *string `json:"dueDate"`
	AssigneeID       *string `json:"assigneeId"`
	AudioRecordingID *string `json:"audioRecordingId"`
}

// userExists / audioExists 建任务前校验引用，避免写入悬空外键
func (h *Handlers) userExists(id string) (bool, error) {
	var n int64
	err := h.db.Model(&models.User{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (h *Handlers) audioExists(id string) (bool, error) {
	var n int64
	err := h.db.Model(&models.AudioRecording{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask 创建任务，reporter 取当前登录用户
func (h *Handlers) CreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid task request", nil)
		return
	}

	if req.AssigneeID != "" {
		ok, err := h.userExists(req.AssigneeID)
		if err != nil {
			response.Fail(c, "can not validate assignee", nil)
			return
		}
		if !ok {
			response.NotFound(c, "assignee not found")
			return
		}
	}
	if req.AudioRecordingID != "" {
		ok, err := h.audioExists(req.AudioRecordingID)
		if err != nil {
			response.Fail(c, "can not validate audio recording", nil)
			return
		}
		if !ok {
			response.NotFound(c, "audio recording not found")
			return
		}
	}

	task := models.Task{
		Title:            req.Title,
		Description:      req.Description,
		ReporterID:       currentUserID(c),
		AssigneeID:       req.AssigneeID,
		AudioRecordingID: req.AudioRecordingID,
	}
	if req.Status != "" {
		if !models.ValidTaskStatus(models.TaskStatus(req.Status)) {
			response.Fail(c, "invalid task status: "+req.Status, nil)
			return
		}
		task.Status = models.TaskStatus(req.Status)
	}
	if req.Priority != "" {
		if !models.ValidTaskPriority(models.TaskPriority(req.Priority)) {
			response.Fail(c, "invalid task priority: "+req.Priority, nil)
			return
		}
		task.Priority = models.TaskPriority(req.Priority)
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		response.Fail(c, "invalid due date: "+req.DueDate, nil)
		return
	}
	task.DueDate = due

	if err := h.db.Create(&task).Error; err != nil {
		h.logger.Error("create task failed", zap.Error(err))
		response.Fail(c, "can not create task", nil)
		return
	}
	response.Created(c, "task created", task)
}

// ListTasks 任务列表，支持 page/limit 分页和 status/assigneeId 过滤
func (h *Handlers) ListTasks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	q := h.db.Model(&models.Task{})
	if status := c.Query("status"); status != "" {
		if !models.ValidTaskStatus(models.TaskStatus(status)) {
			response.Fail(c, "invalid task status: "+status, nil)
			return
		}
		q = q.Where("status = ?", status)
	}
	if assignee := c.Query("assigneeId"); assignee != "" {
		q = q.Where("assignee_id = ?", assignee)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		response.Fail(c, "can not count tasks", nil)
		return
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tasks).Error; err != nil {
		response.Fail(c, "can not list tasks", nil)
		return
	}

	response.Success(c, "tasks", gin.H{
		"items": tasks,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetTask 按 ID 查询任务
func (h *Handlers) GetTask(c *gin.Context) {
	id := c.Param("id")

	var task models.Task
	if err := h.db.Preload("Assignee").Preload("Reporter").First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "task not found")
			return
		}
		response.Fail(c, "can not load task", nil)
		return
	}
	response.Success(c, "task", task)
}

// UpdateTask 部分更新，只改请求里出现的字段
func (h *Handlers) UpdateTask(c *gin.Context) {
	id := c.Param("id")

	var task models.Task
	if err := h.db.First(&task, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "task not found")
			return
		}
		response.Fail(c, "can not load task", nil)
		return
	}

	var req taskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid task request", nil)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		if !models.ValidTaskStatus(models.TaskStatus(*req.Status)) {
			response.Fail(c, "invalid task status: "+*req.Status, nil)
			return
		}
		updates["status"] = *req.Status
	}
	if req.Priority != nil {
		if !models.ValidTaskPriority(models.TaskPriority(*req.Priority)) {
			response.Fail(c, "invalid task priority: "+*req.Priority, nil)
			return
		}
		updates["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			response.Fail(c, "invalid due date: "+*req.DueDate, nil)
			return
		}
		updates["due_date"] = due
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID != "" {
			ok, err := h.userExists(*req.AssigneeID)
			if err != nil {
				response.Fail(c, "can not validate assignee", nil)
				return
			}
			if !ok {
				response.NotFound(c, "assignee not found")
				return
			}
		}
		updates["assignee_id"] = *req.AssigneeID
	}
	if req.AudioRecordingID != nil {
		if *req.AudioRecordingID != "" {
			ok, err := h.audioExists(*req.AudioRecordingID)
			if err != nil {
				response.Fail(c, "can not validate audio recording", nil)
				return
			}
			if !ok {
				response.NotFound(c, "audio recording not found")
				return
			}
		}
		updates["audio_recording_id"] = *req.AudioRecordingID
	}

	if len(updates) > 0 {
		if err := h.db.Model(&task).Updates(updates).Error; err != nil {
			h.logger.Error("update task failed", zap.String("task_id", id), zap.Error(err))
			response.Fail(c, "can not update task", nil)
			return
		}
	}

	if err := h.db.First(&task, "id = ?", id).Error; err != nil {
		response.Fail(c, "can not reload task", nil)
		return
	}
	response.Success(c, "task updated", task)
}

// DeleteTask 物理删除，不留软删除痕迹
func (h *Handlers) DeleteTask(c *gin.Context) {
	id := c.Param("id")

	res := h.db.Delete(&models.Task{}, "id = ?", id)
	if res.Error != nil {
		response.Fail(c, "can not delete task", nil)
		return
	}
	if res.RowsAffected == 0 {
		response.NotFound(c, "task not found")
		return
	}
	response.Success(c, "task deleted", nil)
}

// ListTasksByAudio 按来源录音查询任务
func (h *Handlers) ListTasksByAudio(c *gin.Context) {
	audioID := c.Param("audioId")

	var tasks []models.Task
	if err := h.db.Where("audio_recording_id = ?", audioID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		response.Fail(c, "can not list tasks", nil)
		return
	}
	response.Success(c, "tasks", tasks)
}
