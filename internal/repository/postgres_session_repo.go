package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

const sessionColumns = `id, user_id, check_in_time, check_out_time, idle_started_at, last_event_at, total_active_time, idle_time, activity_count, to_char(date, 'YYYY-MM-DD')`

// PostgresWorkSessionRepo はPostgreSQLを使用した勤務セッションリポジトリ。
// 状態遷移に伴う複数テーブル書き込みを同一トランザクションで実行し、
// 書き込み失敗時にストレージとメモリ状態が乖離しないことを保証する。
type PostgresWorkSessionRepo struct {
	db *sql.DB
}

// NewPostgresWorkSessionRepo はPostgresWorkSessionRepoを生成する。
func NewPostgresWorkSessionRepo(db *sql.DB) *PostgresWorkSessionRepo {
	return &PostgresWorkSessionRepo{db: db}
}

// OpenWithLog はセッション作成、users.is_checked_in=true、チェックインログの挿入を
// 同一トランザクションで行う。部分一意インデックスに違反した場合は
// ErrDuplicateOpenSessionを返す。
func (r *PostgresWorkSessionRepo) OpenWithLog(ctx context.Context, session *model.WorkSession, log *model.ActivityLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO work_sessions (id, user_id, check_in_time, check_out_time, idle_started_at, last_event_at, total_active_time, idle_time, activity_count, date)
		 VALUES ($1, $2, $3, NULL, NULL, $4, 0, 0, 0, $5)`,
		session.ID, session.UserID, session.CheckInTime, session.LastEventAt, session.Date,
	)
	if isUniqueViolation(err, "idx_work_sessions_open_per_user") {
		return ErrDuplicateOpenSession
	}
	if err != nil {
		return fmt.Errorf("failed to insert work session: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET is_checked_in = TRUE, last_activity = $1 WHERE id = $2`,
		session.CheckInTime, session.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark user checked in: %w", err)
	}

	if err := insertActivityLogTx(ctx, tx, log); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindOpenByUserID は指定ユーザーのオープンセッションを取得する。存在しない場合はnilを返す。
func (r *PostgresWorkSessionRepo) FindOpenByUserID(ctx context.Context, userID string) (*model.WorkSession, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions
		 WHERE user_id = $1 AND check_out_time IS NULL`,
		userID,
	)
	session, err := scanWorkSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open work session: %w", err)
	}
	return session, nil
}

// SaveProgressWithLogs はオープンセッションのカウンタ更新、users.last_activityの更新、
// ログ挿入を同一トランザクションで行う。
func (r *PostgresWorkSessionRepo) SaveProgressWithLogs(ctx context.Context, session *model.WorkSession, logs ...*model.ActivityLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE work_sessions
		 SET idle_started_at = $1, last_event_at = $2, idle_time = $3, activity_count = $4
		 WHERE id = $5 AND check_out_time IS NULL`,
		nullableTime(session.IdleStartedAt), session.LastEventAt, session.IdleTime, session.ActivityCount,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update work session: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if affected == 0 {
		return ErrSessionAlreadyClosed
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET last_activity = $1 WHERE id = $2`,
		session.LastEventAt, session.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user last activity: %w", err)
	}

	for _, log := range logs {
		if err := insertActivityLogTx(ctx, tx, log); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CloseWithLogs はセッションのクローズ、users.is_checked_in=false、
// total_working_timeへの加算、ログ挿入を同一トランザクションで行う。
// クローズは条件付き更新（check_out_time IS NULL）であり、
// 既にクローズ済みの場合はErrSessionAlreadyClosedを返す。
func (r *PostgresWorkSessionRepo) CloseWithLogs(ctx context.Context, session *model.WorkSession, activeMinutes int, logs ...*model.ActivityLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE work_sessions
		 SET check_out_time = $1, idle_started_at = NULL, last_event_at = $1,
		     total_active_time = $2, idle_time = $3, activity_count = $4
		 WHERE id = $5 AND check_out_time IS NULL`,
		session.CheckOutTime, activeMinutes, session.IdleTime, session.ActivityCount,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to close work session: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if affected == 0 {
		return ErrSessionAlreadyClosed
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET is_checked_in = FALSE, last_activity = $1,
		     total_working_time = total_working_time + $2
		 WHERE id = $3`,
		session.CheckOutTime, activeMinutes, session.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to fold working time into user: %w", err)
	}

	for _, log := range logs {
		if err := insertActivityLogTx(ctx, tx, log); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByUserID は指定ユーザーのセッションをチェックイン時刻降順で返す。
func (r *PostgresWorkSessionRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.WorkSession, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions
		 WHERE user_id = $1
		 ORDER BY check_in_time DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.WorkSession
	for rows.Next() {
		session, err := scanWorkSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work sessions: %w", err)
	}
	return sessions, nil
}

// scanWorkSession はsessionColumns順のレコードをmodel.WorkSessionに読み込む。
func scanWorkSession(row rowScanner) (*model.WorkSession, error) {
	session := &model.WorkSession{}
	var checkOut, idleStarted sql.NullTime
	err := row.Scan(
		&session.ID, &session.UserID, &session.CheckInTime, &checkOut, &idleStarted,
		&session.LastEventAt, &session.TotalActiveTime, &session.IdleTime,
		&session.ActivityCount, &session.Date,
	)
	if err != nil {
		return nil, err
	}
	if checkOut.Valid {
		t := checkOut.Time
		session.CheckOutTime = &t
	}
	if idleStarted.Valid {
		t := idleStarted.Time
		session.IdleStartedAt = &t
	}
	return session, nil
}

// nullableTime は*time.Timeをsql.NullTimeに変換する。
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// compile-time interface check
var _ WorkSessionRepository = (*PostgresWorkSessionRepo)(nil)
