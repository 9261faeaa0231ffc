package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

func ValidTaskPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID               string       `gorm:"primaryKey;size:36" json:"id"`
	Title            string       `gorm:"size:512" json:"title"`
	Description      string       `gorm:"type:text" json:"description,omitempty"`
	Status           TaskStatus   `gorm:"size:32;default:TODO" json:"status"`
	Priority         TaskPriority `gorm:"size:16;default:MEDIUM" json:"priority"`
	DueDate          *time.Time   `json:"dueDate,omitempty"`
	AssigneeID       string       `gorm:"size:36;index" json:"assigneeId,omitempty"`
	ReporterID       string       `gorm:"size:36;index" json:"reporterId"`
	AudioRecordingID string       `gorm:"size:36;index" json:"audioRecordingId,omitempty"`
	LarkTaskID       string       `gorm:"size:64;uniqueIndex:idx_lark_task_id,where:lark_task_id <> ''" json:"larkTaskId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`

	Assignee       *User           `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Reporter       *User           `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	AudioRecording *AudioRecording `gorm:"foreignKey:AudioRecordingID" json:"audioRecording,omitempty"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return nil
}
