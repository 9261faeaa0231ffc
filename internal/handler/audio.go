package handlers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UploadAudio 音频上传
//
// multipart 表单字段 file，仅接受 audio/* 类型，超过大小上限直接拒绝。
// 存储键为 <毫秒时间戳>_<用户ID><扩展名>，避免原始文件名冲突和路径注入。
func (h *Handlers) UploadAudio(c *gin.Context) {
	userID := currentUserID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, "missing file field", nil)
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "audio/") {
		response.Fail(c, fmt.Sprintf("unsupported media type: %s", mimeType), nil)
		return
	}
	if fileHeader.Size > config.GlobalConfig.UploadMaxBytes {
		response.Fail(c, fmt.Sprintf("file too large: %d bytes (limit %d)", fileHeader.Size, config.GlobalConfig.UploadMaxBytes), nil)
		return
	}

	ext := filepath.Ext(fileHeader.Filename)
	key := fmt.Sprintf("%d_%s%s", time.Now().UnixMilli(), userID, ext)

	src, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, "can not read upload", nil)
		return
	}
	defer src.Close()

	if err := h.store.Write(key, src); err != nil {
		h.logger.Error("store audio failed", zap.String("key", key), zap.Error(err))
		response.Fail(c, "can not store audio", nil)
		return
	}

	recording := models.AudioRecording{
		UserID:           userID,
		OriginalFileName: filepath.Base(fileHeader.Filename),
		FilePath:         key,
		MimeType:         mimeType,
		SizeBytes:        fileHeader.Size,
	}
	if err := h.db.Create(&recording).Error; err != nil {
		h.logger.Error("create audio recording failed", zap.Error(err))
		response.Fail(c, "can not save audio recording", nil)
		return
	}

	h.metrics.RecordAudioUpload(fileHeader.Size)
	h.logger.Info("audio uploaded",
		zap.String("recording_id", recording.ID),
		zap.String("user_id", userID),
		zap.Int64("size", fileHeader.Size))
	response.Created(c, "audio uploaded", recording)
}

// GetAudioRecording 按 ID 查询录音，带转写结果
func (h *Handlers) GetAudioRecording(c *gin.Context) {
	id := c.Param("id")

	var recording models.AudioRecording
	if err := h.db.Preload("Transcription").First(&recording, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "audio recording not found")
			return
		}
		response.Fail(c, "can not load audio recording", nil)
		return
	}
	response.Success(c, "audio recording", recording)
}

// ListUserAudioRecordings 按用户查询录音列表，新的在前
func (h *Handlers) ListUserAudioRecordings(c *gin.Context) {
	userID := c.Param("userId")

	var recordings []models.AudioRecording
	if err := h.db.Preload("Transcription").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recordings).Error; err != nil {
		response.Fail(c, "can not list audio recordings", nil)
		return
	}
	response.Success(c, "audio recordings", recordings)
}
