// Package cleanup はアクティビティログの自動削除ジョブを提供する。
// 保持期間（デフォルト180日）を超過したログを日次バッチで削除する。
// セッション履歴とユーザーの累計稼働時間は削除対象に含めない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LogPruner は古いアクティビティログの削除インターフェース。
// repository.ActivityLogRepositoryの部分集合として定義する。
type LogPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// DeletionRecorder は削除件数のメトリクス記録インターフェース。
type DeletionRecorder interface {
	RecordLogsDeleted(count int64)
}

// CleanupJob は保持期間を超過したアクティビティログの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	pruner        LogPruner
	logger        *slog.Logger
	metrics       DeletionRecorder
	RetentionDays int // ログの保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。metricsはnilを許容する。
// デフォルトの保持日数は180日。
func NewCleanupJob(pruner LogPruner, logger *slog.Logger, metrics DeletionRecorder) *CleanupJob {
	return &CleanupJob{
		pruner:        pruner,
		logger:        logger,
		metrics:       metrics,
		RetentionDays: 180,
	}
}

// Run は保持期間を超過したアクティビティログを削除する。
// timestampがRetentionDays日前より古いログをDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := start.UTC().AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("ログクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ログクリーンアップの実行に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordLogsDeleted(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("ログクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
