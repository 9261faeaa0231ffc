package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AudioRecording struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	UserID           string    `gorm:"size:36;index" json:"userId"`
	OriginalFileName string    `gorm:"size:512" json:"originalFileName"`
	FilePath         string    `gorm:"size:1024" json:"filePath"` // 落盘后的存储路径
	MimeType         string    `gorm:"size:128" json:"mimeType"`
	SizeBytes        int64     `json:"sizeBytes"`
	DurationMs       int64     `json:"durationMs"`
	TranscriptionID  string    `gorm:"size:36" json:"transcriptionId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`

	// 关联仅按 ID 查出来再挂上，避免实体间互相持有
	Transcription *Transcription `gorm:"foreignKey:AudioRecordingID" json:"transcription,omitempty"`
}

func (a *AudioRecording) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
