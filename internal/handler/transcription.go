package handlers

import (
	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/config"
	"HibiscusMeet/pkg/queue"
	"HibiscusMeet/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StartTranscription 为一条录音排队转写
//
// 同一条录音只会有一条转写记录，重复调用返回已有记录。
// 入队失败时转写行直接置 FAILED，客户端无需区分失败来源。
func (h *Handlers) StartTranscription(c *gin.Context) {
	audioID := c.Param("audioId")

	var recording models.AudioRecording
	if err := h.db.First(&recording, "id = ?", audioID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "audio recording not found")
			return
		}
		response.Fail(c, "can not load audio recording", nil)
		return
	}

	var existing models.Transcription
	err := h.db.First(&existing, "audio_recording_id = ?", recording.ID).Error
	if err == nil {
		response.Success(c, "transcription already exists", existing)
		return
	}
	if err != gorm.ErrRecordNotFound {
		response.Fail(c, "can not check transcription", nil)
		return
	}

	tr := models.Transcription{
		AudioRecordingID: recording.ID,
		Status:           models.TranscriptionPending,
	}
	if err := h.db.Create(&tr).Error; err != nil {
		h.logger.Error("create transcription failed", zap.Error(err))
		response.Fail(c, "can not create transcription", nil)
		return
	}
	if err := h.db.Model(&recording).Update("transcription_id", tr.ID).Error; err != nil {
		h.logger.Error("link transcription to recording failed",
			zap.String("audio_recording_id", recording.ID),
			zap.String("transcription_id", tr.ID),
			zap.Error(err))
	}

	job := queue.TranscriptionJob{
		AudioRecordingID: recording.ID,
		TranscriptionID:  tr.ID,
		FilePath:         recording.FilePath,
	}
	queueName := config.GlobalConfig.TranscriptionQueue
	if err := h.publisher.Publish(c.Request.Context(), job); err != nil {
		h.logger.Error("publish transcription job failed",
			zap.String("transcription_id", tr.ID),
			zap.Error(err))
		h.metrics.RecordQueuePublish(queueName, "error")
		h.db.Model(&tr).Updates(map[string]interface{}{
			"status":        models.TranscriptionFailed,
			"error_message": "failed to enqueue transcription job",
		})
		tr.Status = models.TranscriptionFailed
		tr.ErrorMessage = "failed to enqueue transcription job"
		response.Created(c, "transcription created but enqueue failed", tr)
		return
	}
	h.metrics.RecordQueuePublish(queueName, "ok")

	response.Created(c, "transcription queued", tr)
}

// GetTranscriptionStatus 查询转写状态与结果
func (h *Handlers) GetTranscriptionStatus(c *gin.Context) {
	id := c.Param("id")

	var tr models.Transcription
	if err := h.db.Preload("AudioRecording").First(&tr, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "transcription not found")
			return
		}
		response.Fail(c, "can not load transcription", nil)
		return
	}
	response.Success(c, "transcription status", tr)
}

// StreamTranscriptionStatus 以 SSE 推送转写状态变更
//
// 连接时先推一次当前状态，之后跟随 worker 的更新。
func (h *Handlers) StreamTranscriptionStatus(c *gin.Context) {
	id := c.Param("id")

	var tr models.Transcription
	if err := h.db.First(&tr, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			response.NotFound(c, "transcription not found")
			return
		}
		response.Fail(c, "can not load transcription", nil)
		return
	}

	h.hub.Serve(c, "transcription:"+id, tr)
}
