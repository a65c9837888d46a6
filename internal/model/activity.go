package model

import "time"

// ActivityType はアクティビティログの種別を表す。
type ActivityType string

const (
	// ActivityCheckIn はチェックインイベントを示す。
	ActivityCheckIn ActivityType = "check-in"
	// ActivityCheckOut はチェックアウトイベントを示す。
	ActivityCheckOut ActivityType = "check-out"
	// ActivityIdleStart はアイドル開始イベントを示す。
	ActivityIdleStart ActivityType = "idle-start"
	// ActivityIdleEnd はアイドル終了イベントを示す。
	ActivityIdleEnd ActivityType = "idle-end"
	// ActivityGeneric は一般アクティビティイベントを示す。
	ActivityGeneric ActivityType = "activity"
)

// IsValid はActivityTypeが定義済みの値であるかを返す。
func (t ActivityType) IsValid() bool {
	switch t {
	case ActivityCheckIn, ActivityCheckOut, ActivityIdleStart, ActivityIdleEnd, ActivityGeneric:
		return true
	}
	return false
}

// ActivityLog は追記専用のアクティビティイベントを表す。
// 作成後に変更されることはなく、ユーザー削除時のCASCADE以外では削除されない。
// 順序はTimestamp、同時刻の場合は挿入順（seq）で決まる。
type ActivityLog struct {
	ID        string
	UserID    string
	Type      ActivityType
	Timestamp time.Time
	Seq       int64             // 挿入順。同時刻イベントのタイブレーク用
	Metadata  map[string]string // 任意のキー/バリューペイロード
}
