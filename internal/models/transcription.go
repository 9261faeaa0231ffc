package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TranscriptionStatus string

const (
	TranscriptionPending    TranscriptionStatus = "PENDING"
	TranscriptionProcessing TranscriptionStatus = "PROCESSING"
	TranscriptionCompleted  TranscriptionStatus = "COMPLETED"
	TranscriptionFailed     TranscriptionStatus = "FAILED"
)

// CanTransition 状态只能单向推进：PENDING → PROCESSING → {COMPLETED, FAILED}
func CanTransition(from, to TranscriptionStatus) bool {
	switch from {
	case TranscriptionPending:
		return to == TranscriptionProcessing || to == TranscriptionFailed
	case TranscriptionProcessing:
		return to == TranscriptionCompleted || to == TranscriptionFailed
	default:
		return false
	}
}

func ValidateTransition(from, to TranscriptionStatus) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transcription transition: %s -> %s", from, to)
	}
	return nil
}

type Transcription struct {
	ID               string              `gorm:"primaryKey;size:36" json:"id"`
	AudioRecordingID string              `gorm:"size:36;uniqueIndex" json:"audioRecordingId"` // 一条录音只对应一条转写
	Status           TranscriptionStatus `gorm:"size:32;default:PENDING" json:"status"`
	TranscriptText   string              `gorm:"type:text" json:"transcriptText,omitempty"`
	Language         string              `gorm:"size:32" json:"language,omitempty"`
	ProcessedAt      *time.Time          `json:"processedAt,omitempty"` // 仅 COMPLETED 时写入
	ErrorMessage     string              `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`

	AudioRecording *AudioRecording `gorm:"foreignKey:AudioRecordingID;references:ID" json:"audioRecording,omitempty"`
}

func (t *Transcription) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TranscriptionPending
	}
	return nil
}

// IsTerminal reports whether the transcription reached a final state.
func (t *Transcription) IsTerminal() bool {
	return t.Status == TranscriptionCompleted || t.Status == TranscriptionFailed
}
