package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"HibiscusMeet/internal/models"
	"HibiscusMeet/pkg/llm"
	"HibiscusMeet/pkg/metrics"
	"HibiscusMeet/pkg/queue"
	stores "HibiscusMeet/pkg/storage"
	"HibiscusMeet/pkg/util"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeTranscriber struct {
	result llm.TranscriptResult
	err    error
	calls  int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (llm.TranscriptResult, error) {
	f.calls++
	return f.result, f.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []models.TranscriptionStatus
}

func (n *recordingNotifier) TranscriptionUpdated(tr *models.Transcription) {
	n.mu.Lock()
	n.updates = append(n.updates, tr.Status)
	n.mu.Unlock()
}

func setupWorker(t *testing.T, tr llm.Transcriber) (*Worker, *gorm.DB, stores.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := util.InitDatabase("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	store := stores.NewLocalStore(t.TempDir())
	return New(db, store, tr, metrics.Default(), zap.NewNop()), db, store
}

func seedJob(t *testing.T, db *gorm.DB, store stores.Store) queue.TranscriptionJob {
	t.Helper()
	require.NoError(t, store.Write("a.mp3", strings.NewReader("audio bytes")))

	recording := models.AudioRecording{UserID: "u1", FilePath: "a.mp3"}
	require.NoError(t, db.Create(&recording).Error)
	tr := models.Transcription{AudioRecordingID: recording.ID}
	require.NoError(t, db.Create(&tr).Error)

	return queue.TranscriptionJob{
		AudioRecordingID: recording.ID,
		TranscriptionID:  tr.ID,
		FilePath:         recording.FilePath,
	}
}

func TestHandleCompletes(t *testing.T) {
	ft := &fakeTranscriber{result: llm.TranscriptResult{Text: "hello world", Language: "english"}}
	w, db, store := setupWorker(t, ft)
	notifier := &recordingNotifier{}
	w.WithNotifier(notifier)

	job := seedJob(t, db, store)
	require.NoError(t, w.Handle(context.Background(), job))

	var tr models.Transcription
	require.NoError(t, db.First(&tr, "id = ?", job.TranscriptionID).Error)
	require.Equal(t, models.TranscriptionCompleted, tr.Status)
	require.Equal(t, "hello world", tr.TranscriptText)
	require.Equal(t, "english", tr.Language)
	require.NotNil(t, tr.ProcessedAt)
	require.Empty(t, tr.ErrorMessage)

	// PROCESSING 和 COMPLETED 各推送一次
	require.Equal(t, []models.TranscriptionStatus{
		models.TranscriptionProcessing,
		models.TranscriptionCompleted,
	}, notifier.updates)
}

func TestHandleMarksFailed(t *testing.T) {
	ft := &fakeTranscriber{err: errors.New("speech api unavailable")}
	w, db, store := setupWorker(t, ft)

	job := seedJob(t, db, store)
	require.Error(t, w.Handle(context.Background(), job))

	var tr models.Transcription
	require.NoError(t, db.First(&tr, "id = ?", job.TranscriptionID).Error)
	require.Equal(t, models.TranscriptionFailed, tr.Status)
	require.Contains(t, tr.ErrorMessage, "speech api unavailable")
	require.Nil(t, tr.ProcessedAt)
}

func TestHandleMissingFileFails(t *testing.T) {
	ft := &fakeTranscriber{result: llm.TranscriptResult{Text: "x"}}
	w, db, store := setupWorker(t, ft)

	job := seedJob(t, db, store)
	job.FilePath = "gone.mp3"
	require.Error(t, w.Handle(context.Background(), job))

	var tr models.Transcription
	require.NoError(t, db.First(&tr, "id = ?", job.TranscriptionID).Error)
	require.Equal(t, models.TranscriptionFailed, tr.Status)
	// 文件缺失时不应该打到语音接口
	require.Zero(t, ft.calls)
}

func TestHandleSkipsTerminal(t *testing.T) {
	ft := &fakeTranscriber{result: llm.TranscriptResult{Text: "x"}}
	w, db, store := setupWorker(t, ft)

	job := seedJob(t, db, store)
	require.NoError(t, db.Model(&models.Transcription{}).
		Where("id = ?", job.TranscriptionID).
		Updates(map[string]interface{}{"status": models.TranscriptionCompleted, "transcript_text": "done"}).Error)

	// 重复投递不再处理
	require.NoError(t, w.Handle(context.Background(), job))
	require.Zero(t, ft.calls)

	var tr models.Transcription
	require.NoError(t, db.First(&tr, "id = ?", job.TranscriptionID).Error)
	require.Equal(t, "done", tr.TranscriptText)
}

func TestHandleUnknownTranscriptionIsDropped(t *testing.T) {
	ft := &fakeTranscriber{}
	w, _, _ := setupWorker(t, ft)

	err := w.Handle(context.Background(), queue.TranscriptionJob{TranscriptionID: "no-such-id"})
	require.NoError(t, err)
	require.Zero(t, ft.calls)
}

func TestReapStale(t *testing.T) {
	w, db, _ := setupWorker(t, &fakeTranscriber{})
	_ = w

	recording := models.AudioRecording{UserID: "u1", FilePath: "a.mp3"}
	require.NoError(t, db.Create(&recording).Error)

	stale := models.Transcription{AudioRecordingID: recording.ID, Status: models.TranscriptionProcessing}
	require.NoError(t, db.Create(&stale).Error)
	// 把 updated_at 拨回一小时前，UpdateColumn 绕过自动时间戳
	require.NoError(t, db.Model(&models.Transcription{}).Where("id = ?", stale.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	recording2 := models.AudioRecording{UserID: "u1", FilePath: "b.mp3"}
	require.NoError(t, db.Create(&recording2).Error)
	fresh := models.Transcription{AudioRecordingID: recording2.ID, Status: models.TranscriptionProcessing}
	require.NoError(t, db.Create(&fresh).Error)

	ReapStale(context.Background(), db, 30*time.Minute, zap.NewNop())

	var got models.Transcription
	require.NoError(t, db.First(&got, "id = ?", stale.ID).Error)
	require.Equal(t, models.TranscriptionFailed, got.Status)
	require.Equal(t, "transcription timed out", got.ErrorMessage)

	got = models.Transcription{}
	require.NoError(t, db.First(&got, "id = ?", fresh.ID).Error)
	require.Equal(t, models.TranscriptionProcessing, got.Status)
}
