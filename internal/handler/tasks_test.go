package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"HibiscusMeet/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	env := setupEnv(t)

	due := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	rec := env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{
		"title":    "prepare quarterly review",
		"priority": "HIGH",
		"dueDate":  due,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var task models.Task
	decodeData(t, rec, &task)
	require.Equal(t, "prepare quarterly review", task.Title)
	require.Equal(t, models.PriorityHigh, task.Priority)
	require.Equal(t, models.TaskTodo, task.Status)
	require.Equal(t, env.userID, task.ReporterID)
	require.NotNil(t, task.DueDate)
}

func TestCreateTaskValidation(t *testing.T) {
	env := setupEnv(t)

	// 缺标题
	rec := env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{"priority": "HIGH"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 非法状态
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "status": "DONE"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 非法优先级
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "priority": "URGENT"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 非法日期
	rec = env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{"title": "x", "dueDate": "tomorrow"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTaskMissingReferences(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{
		"title":      "assign to ghost",
		"assigneeId": "no-such-user",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tasks", gin.H{
		"title":            "from ghost recording",
		"audioRecordingId": "no-such-audio",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	// 校验失败不落库
	var count int64
	env.db.Model(&models.Task{}).Count(&count)
	require.Zero(t, count)
}

func TestUpdateTaskRevalidatesAssignee(t *testing.T) {
	env := setupEnv(t)

	task := models.Task{Title: "reassign me", ReporterID: env.userID}
	require.NoError(t, env.db.Create(&task).Error)

	rec := env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, gin.H{"assigneeId": "no-such-user"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, gin.H{"assigneeId": env.userID})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Task
	decodeData(t, rec, &updated)
	require.Equal(t, env.userID, updated.AssigneeID)
}

func TestListTasksPagination(t *testing.T) {
	env := setupEnv(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		task := models.Task{
			Title:      fmt.Sprintf("task %02d", i),
			ReporterID: env.userID,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, env.db.Create(&task).Error)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/tasks?page=2&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Items []models.Task `json:"items"`
		Total int64         `json:"total"`
		Page  int           `json:"page"`
		Limit int           `json:"limit"`
	}
	decodeData(t, rec, &page)
	require.EqualValues(t, 25, page.Total)
	require.Len(t, page.Items, 10)
	require.Equal(t, 2, page.Page)
	// created_at 倒序，第二页从第 11 新的开始
	require.Equal(t, "task 14", page.Items[0].Title)
	require.Equal(t, "task 05", page.Items[9].Title)
}

func TestListTasksFilters(t *testing.T) {
	env := setupEnv(t)

	other := models.User{Email: "other@example.com", Password: "x"}
	require.NoError(t, env.db.Create(&other).Error)

	require.NoError(t, env.db.Create(&models.Task{Title: "a", ReporterID: env.userID, Status: models.TaskCompleted}).Error)
	require.NoError(t, env.db.Create(&models.Task{Title: "b", ReporterID: env.userID, AssigneeID: other.ID}).Error)
	require.NoError(t, env.db.Create(&models.Task{Title: "c", ReporterID: env.userID}).Error)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks?status=COMPLETED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []models.Task `json:"items"`
		Total int64         `json:"total"`
	}
	decodeData(t, rec, &page)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "a", page.Items[0].Title)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks?assigneeId="+other.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &page)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "b", page.Items[0].Title)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks?status=NOPE", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateTask(t *testing.T) {
	env := setupEnv(t)

	task := models.Task{Title: "original", ReporterID: env.userID}
	require.NoError(t, env.db.Create(&task).Error)

	rec := env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, gin.H{
		"title":  "renamed",
		"status": "IN_PROGRESS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Task
	decodeData(t, rec, &updated)
	require.Equal(t, "renamed", updated.Title)
	require.Equal(t, models.TaskInProgress, updated.Status)
	// 未提及的字段不动
	require.Equal(t, models.PriorityMedium, updated.Priority)

	rec = env.do(t, http.MethodPut, "/api/v1/tasks/"+task.ID, gin.H{"status": "NOPE"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/tasks/no-such-id", gin.H{"title": "x"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTask(t *testing.T) {
	env := setupEnv(t)

	task := models.Task{Title: "to delete", ReporterID: env.userID}
	require.NoError(t, env.db.Create(&task).Error)

	rec := env.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// 物理删除，行不复存在
	var count int64
	env.db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count)
	require.Zero(t, count)

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTasksByAudio(t *testing.T) {
	env := setupEnv(t)

	recording := models.AudioRecording{UserID: env.userID, FilePath: "a.mp3"}
	require.NoError(t, env.db.Create(&recording).Error)

	require.NoError(t, env.db.Create(&models.Task{Title: "from meeting", ReporterID: env.userID, AudioRecordingID: recording.ID}).Error)
	require.NoError(t, env.db.Create(&models.Task{Title: "unrelated", ReporterID: env.userID}).Error)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/audio/"+recording.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []models.Task
	decodeData(t, rec, &tasks)
	require.Len(t, tasks, 1)
	require.Equal(t, "from meeting", tasks[0].Title)
}
