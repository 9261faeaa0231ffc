package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/llm"
	"HibiscusMeet/pkg/metrics"
	"HibiscusMeet/pkg/queue"
	stores "HibiscusMeet/pkg/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Converter 音频预处理钩子，转写前对文件做格式转换
//
// 默认实现原样返回。接入 ffmpeg 之类的转码器时替换这里。
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

type identityConverter struct{}

func (identityConverter) Convert(_ context.Context, path string) (string, error) {
	return path, nil
}

// Notifier 状态变更通知回调，SSE 推送挂在这里
type Notifier interface {
	TranscriptionUpdated(tr *models.Transcription)
}

// Worker 消费转写任务：拉取音频、调用语音识别、回写结果
type Worker struct {
	db          *gorm.DB
	store       stores.Store
	transcriber llm.Transcriber
	convert     Converter
	notifier    Notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func New(db *gorm.DB, store stores.Store, transcriber llm.Transcriber, m *metrics.Metrics, logger *zap.Logger) *Worker {
	return &Worker{
		db:          db,
		store:       store,
		transcriber: transcriber,
		convert:     identityConverter{},
		metrics:     m,
		logger:      logger,
	}
}

// WithConverter 替换音频预处理钩子
func (w *Worker) WithConverter(c Converter) *Worker {
	w.convert = c
	return w
}

// WithNotifier 挂上状态变更通知
func (w *Worker) WithNotifier(n Notifier) *Worker {
	w.notifier = n
	return w
}

// Handle 处理一条转写任务
//
// 任何阶段出错都把转写行置为 FAILED 并记录错误信息，消息不重投。
// 找不到转写行或已到终态时直接跳过（重复投递幂等）。
func (w *Worker) Handle(ctx context.Context, job queue.TranscriptionJob) error {
	start := time.Now()

	var tr models.Transcription
	if err := w.db.WithContext(ctx).First(&tr, "id = ?", job.TranscriptionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			w.logger.Warn("transcription not found, dropping job",
				zap.String("transcription_id", job.TranscriptionID))
			return nil
		}
		return fmt.Errorf("load transcription %s: %w", job.TranscriptionID, err)
	}

	if tr.IsTerminal() {
		w.logger.Info("transcription already terminal, skipping",
			zap.String("transcription_id", tr.ID),
			zap.String("status", string(tr.Status)))
		return nil
	}

	if err := w.setStatus(ctx, &tr, models.TranscriptionProcessing, ""); err != nil {
		return err
	}

	result, err := w.run(ctx, job)
	if err != nil {
		w.logger.Error("transcription failed",
			zap.String("transcription_id", tr.ID),
			zap.Error(err))
		if ferr := w.setStatus(ctx, &tr, models.TranscriptionFailed, err.Error()); ferr != nil {
			return ferr
		}
		w.metrics.RecordTranscriptionJob("failed", time.Since(start))
		return err
	}

	now := time.Now()
	tr.TranscriptText = result.Text
	tr.Language = result.Language
	tr.ProcessedAt = &now
	if err := w.setStatus(ctx, &tr, models.TranscriptionCompleted, ""); err != nil {
		return err
	}
	w.metrics.RecordTranscriptionJob("completed", time.Since(start))
	w.logger.Info("transcription completed",
		zap.String("transcription_id", tr.ID),
		zap.String("language", result.Language),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (w *Worker) run(ctx context.Context, job queue.TranscriptionJob) (llm.TranscriptResult, error) {
	path, cleanup, err := w.store.Localize(job.FilePath)
	if err != nil {
		return llm.TranscriptResult{}, fmt.Errorf("localize audio %s: %w", job.FilePath, err)
	}
	defer cleanup()

	path, err = w.convert.Convert(ctx, path)
	if err != nil {
		return llm.TranscriptResult{}, fmt.Errorf("convert audio: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		return llm.TranscriptResult{}, fmt.Errorf("audio file missing: %w", err)
	}

	return w.transcriber.Transcribe(ctx, path)
}

// setStatus 按状态机推进并持久化，非法跳转直接报错
func (w *Worker) setStatus(ctx context.Context, tr *models.Transcription, to models.TranscriptionStatus, errMsg string) error {
	if err := models.ValidateTransition(tr.Status, to); err != nil {
		return err
	}
	tr.Status = to
	tr.ErrorMessage = errMsg
	updates := map[string]interface{}{
		"status":        tr.Status,
		"error_message": tr.ErrorMessage,
	}
	if tr.ProcessedAt != nil {
		updates["processed_at"] = tr.ProcessedAt
	}
	if to == models.TranscriptionCompleted {
		updates["transcript_text"] = tr.TranscriptText
		updates["language"] = tr.Language
	}
	if err := w.db.WithContext(ctx).Model(&models.Transcription{}).
		Where("id = ?", tr.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update transcription %s to %s: %w", tr.ID, to, err)
	}
	if w.notifier != nil {
		w.notifier.TranscriptionUpdated(tr)
	}
	return nil
}
