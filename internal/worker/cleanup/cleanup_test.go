package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// mockPruner はLogPrunerのモック実装。
type mockPruner struct {
	called    bool
	cutoff    time.Time
	deleted   int64
	err       error
	callCount int
}

func (m *mockPruner) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.called = true
	m.callCount++
	m.cutoff = cutoff
	return m.deleted, m.err
}

// mockDeletionRecorder はDeletionRecorderのモック実装。
type mockDeletionRecorder struct {
	recorded int64
}

func (m *mockDeletionRecorder) RecordLogsDeleted(count int64) {
	m.recorded += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestNewCleanupJob_DefaultRetentionDays(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPruner{}, newTestLogger(&buf), nil)

	if job.RetentionDays != 180 {
		t.Errorf("RetentionDays = %d, want 180", job.RetentionDays)
	}
}

func TestRun_UsesRetentionCutoff(t *testing.T) {
	var buf bytes.Buffer
	pruner := &mockPruner{deleted: 5}
	job := NewCleanupJob(pruner, newTestLogger(&buf), nil)
	job.RetentionDays = 90

	before := time.Now().UTC().AddDate(0, 0, -90)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	after := time.Now().UTC().AddDate(0, 0, -90)

	if !pruner.called {
		t.Fatal("DeleteOlderThan が呼び出されなかった")
	}
	if pruner.cutoff.Before(before) || pruner.cutoff.After(after) {
		t.Errorf("cutoff = %v, want 90日前前後", pruner.cutoff)
	}
}

func TestRun_RecordsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockDeletionRecorder{}
	job := NewCleanupJob(&mockPruner{deleted: 42}, newTestLogger(&buf), recorder)

	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if recorder.recorded != 42 {
		t.Errorf("記録された削除件数 = %d, want 42", recorder.recorded)
	}
}

func TestRun_LogsDeletedCount(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockPruner{deleted: 42}, newTestLogger(&buf), nil)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["deleted_count"]; ok && count == float64(42) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestRun_ReturnsErrorOnRepositoryFailure(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockDeletionRecorder{}
	pruner := &mockPruner{err: errors.New("connection refused")}
	job := NewCleanupJob(pruner, newTestLogger(&buf), recorder)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("リポジトリエラー時に Run() はエラーを返すべき")
	}

	if recorder.recorded != 0 {
		t.Error("失敗時にメトリクスが記録された")
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestRun_IdempotentWithZeroDeletions(t *testing.T) {
	var buf bytes.Buffer
	pruner := &mockPruner{deleted: 0}
	job := NewCleanupJob(pruner, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}
	if pruner.callCount != 2 {
		t.Errorf("呼び出し回数 = %d, want 2", pruner.callCount)
	}
}
