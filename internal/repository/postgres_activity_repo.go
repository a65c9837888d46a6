package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// PostgresActivityLogRepo はPostgreSQLを使用したアクティビティログリポジトリ。
// 追記と参照のみを提供し、更新操作は持たない。
type PostgresActivityLogRepo struct {
	db *sql.DB
}

// NewPostgresActivityLogRepo はPostgresActivityLogRepoを生成する。
func NewPostgresActivityLogRepo(db *sql.DB) *PostgresActivityLogRepo {
	return &PostgresActivityLogRepo{db: db}
}

// Append はログを1件追記する。
func (r *PostgresActivityLogRepo) Append(ctx context.Context, log *model.ActivityLog) error {
	metadata, err := marshalMetadata(log.Metadata)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO activity_logs (id, user_id, type, timestamp, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq`,
		log.ID, log.UserID, log.Type, log.Timestamp, metadata,
	).Scan(&log.Seq)
	if err != nil {
		return fmt.Errorf("failed to append activity log: %w", err)
	}
	return nil
}

// ListRecentByUserID は指定ユーザーのログをtimestamp降順（同時刻は挿入順降順）で
// 最大limit件返す。
func (r *PostgresActivityLogRepo) ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, type, timestamp, seq, metadata
		 FROM activity_logs
		 WHERE user_id = $1
		 ORDER BY timestamp DESC, seq DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var logs []*model.ActivityLog
	for rows.Next() {
		log := &model.ActivityLog{}
		var metadata []byte
		if err := rows.Scan(&log.ID, &log.UserID, &log.Type, &log.Timestamp, &log.Seq, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &log.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity log metadata: %w", err)
			}
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity logs: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan は指定時刻より古いログを削除し、削除件数を返す。
func (r *PostgresActivityLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM activity_logs WHERE timestamp < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activity logs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// insertActivityLogTx はトランザクション内でログを1件挿入する。
// セッションリポジトリの状態遷移トランザクションから共用される。
func insertActivityLogTx(ctx context.Context, tx *sql.Tx, log *model.ActivityLog) error {
	if log == nil {
		return nil
	}
	metadata, err := marshalMetadata(log.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO activity_logs (id, user_id, type, timestamp, metadata)
		 VALUES ($1, $2, $3, $4, $5)`,
		log.ID, log.UserID, log.Type, log.Timestamp, metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// marshalMetadata はメタデータをJSONB格納用に変換する。nilマップはNULLとして格納する。
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity log metadata: %w", err)
	}
	return b, nil
}

// compile-time interface check
var _ ActivityLogRepository = (*PostgresActivityLogRepo)(nil)
