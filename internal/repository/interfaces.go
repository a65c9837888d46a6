// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// ErrDuplicateOpenSession はオープンセッションの一意制約違反を示すセンチネルエラー。
// work_sessionsの部分一意インデックスに違反した条件付き書き込みで返る。
var ErrDuplicateOpenSession = errors.New("open work session already exists for user")

// ErrDuplicateUsername はユーザー名の一意制約違反を示すセンチネルエラー。
var ErrDuplicateUsername = errors.New("username already exists")

// ErrSessionAlreadyClosed はクローズ済みセッションへの条件付き更新の失敗を示す。
var ErrSessionAlreadyClosed = errors.New("work session already closed")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名の完全一致でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateLastActivity は最終アクティビティ時刻を更新する。
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するwork_sessions、activity_logsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// WorkSessionRepository は勤務セッションの永続化インターフェース。
// 1回の状態遷移に伴う複数テーブル書き込み（セッション行、ユーザーフラグ、
// アクティビティログ）は同一トランザクションで実行する。
type WorkSessionRepository interface {
	// OpenWithLog はセッション作成、users.is_checked_in=true、チェックインログの
	// 挿入を同一トランザクションで行う。同一ユーザーにオープンセッションが既に
	// 存在する場合はErrDuplicateOpenSessionを返す。
	OpenWithLog(ctx context.Context, session *model.WorkSession, log *model.ActivityLog) error

	// FindOpenByUserID は指定ユーザーのオープンセッションを取得する。
	// 存在しない場合はnilを返す。
	FindOpenByUserID(ctx context.Context, userID string) (*model.WorkSession, error)

	// SaveProgressWithLogs はオープンセッションのカウンタ更新、users.last_activityの
	// 更新、ログ挿入を同一トランザクションで行う。
	SaveProgressWithLogs(ctx context.Context, session *model.WorkSession, logs ...*model.ActivityLog) error

	// CloseWithLogs はセッションのクローズ、users.is_checked_in=false、
	// total_working_timeへのactiveMinutes加算、ログ挿入を同一トランザクションで行う。
	// 対象セッションが既にクローズ済みの場合はErrSessionAlreadyClosedを返す。
	CloseWithLogs(ctx context.Context, session *model.WorkSession, activeMinutes int, logs ...*model.ActivityLog) error

	// ListByUserID は指定ユーザーのセッションをチェックイン時刻降順で返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.WorkSession, error)
}

// ActivityLogRepository はアクティビティログの永続化インターフェース。
// 追記専用であり、更新操作は公開しない。
type ActivityLogRepository interface {
	// Append はログを1件追記する。
	Append(ctx context.Context, log *model.ActivityLog) error

	// ListRecentByUserID は指定ユーザーのログをtimestamp降順（同時刻は挿入順降順）で
	// 最大limit件返す。
	ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)

	// DeleteOlderThan は指定時刻より古いログを削除し、削除件数を返す。
	// 保持期間クリーンアップジョブ専用。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
