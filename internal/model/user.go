// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限区分を表す。
type Role string

const (
	// RoleUser は一般ユーザーを示す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を示す。ユーザー管理APIを利用できる。
	RoleAdmin Role = "admin"
)

// IsValid はRoleが定義済みの値であるかを返す。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User は勤怠管理サービスの利用ユーザーを表す。
// TotalWorkingTimeはチェックアウト時に確定した稼働分数の累計で、
// 管理者による修正を除き単調増加する。
type User struct {
	ID               string
	Username         string
	Name             string
	PasswordHash     string
	Role             Role
	CreatedAt        time.Time
	IsCheckedIn      bool
	LastActivity     time.Time
	TotalWorkingTime int // 累計稼働時間（分）
}
