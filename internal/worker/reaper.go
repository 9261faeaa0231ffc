package worker

import (
	"context"
	"time"

	"HibiscusMeet/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReapStale 回收卡死的转写：PROCESSING 状态停留超过 age 视为进程崩溃遗留，
// 统一置为 FAILED，避免客户端轮询永远等不到终态。
func ReapStale(ctx context.Context, db *gorm.DB, age time.Duration, logger *zap.Logger) {
	cutoff := time.Now().Add(-age)
	res := db.WithContext(ctx).Model(&models.Transcription{}).
		Where("status = ? AND updated_at < ?", models.TranscriptionProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        models.TranscriptionFailed,
			"error_message": "transcription timed out",
		})
	if res.Error != nil {
		logger.Error("reap stale transcriptions failed", zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		logger.Warn("reaped stale transcriptions",
			zap.Int64("count", res.RowsAffected),
			zap.Duration("age", age))
	}
}
