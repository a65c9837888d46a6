package model

import "time"

// WorkSession はチェックインからチェックアウトまでの1勤務区間を表す。
// CheckOutTimeがnilの間はオープンセッションであり、
// 同一ユーザーにつきオープンセッションは常に高々1件となる。
type WorkSession struct {
	ID              string
	UserID          string
	CheckInTime     time.Time
	CheckOutTime    *time.Time // nil = オープン
	IdleStartedAt   *time.Time // nil = アイドル期間なし
	LastEventAt     time.Time  // セッション内タイムスタンプ単調性の基準
	TotalActiveTime int        // 稼働時間（分）。チェックアウト時に確定する
	IdleTime        int        // アイドル時間（分）
	ActivityCount   int
	Date            string // チェックイン日（YYYY-MM-DD、レポート用）
}

// IsOpen はセッションがオープン（未チェックアウト）であるかを返す。
func (s *WorkSession) IsOpen() bool {
	return s.CheckOutTime == nil
}

// IsIdle はアイドル期間が開始されているかを返す。
func (s *WorkSession) IsIdle() bool {
	return s.IdleStartedAt != nil
}
