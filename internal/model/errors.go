package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, state, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// 認証エラー
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeTokenMalformed     = "TOKEN_MALFORMED"

	// セッション状態エラー
	ErrCodeAlreadyCheckedIn = "ALREADY_CHECKED_IN"
	ErrCodeNoOpenSession    = "NO_OPEN_SESSION"
	ErrCodeAlreadyIdle      = "ALREADY_IDLE"
	ErrCodeNotIdle          = "NOT_IDLE"
	ErrCodeInvalidTimestamp = "INVALID_TIMESTAMP"

	// ユーザー管理エラー
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
	ErrCodeUsernameTaken = "USERNAME_TAKEN"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー列挙攻撃を防ぐため、ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "認証トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenMalformedError はトークン不正エラーを生成する。
func NewTokenMalformedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMalformed,
		Message:  "認証トークンが不正です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewAlreadyCheckedInError は二重チェックインエラーを生成する。
func NewAlreadyCheckedInError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyCheckedIn,
		Message:  "すでにチェックイン済みです。",
		Category: "state",
		Action:   "チェックアウトしてから再度チェックインしてください。",
	}
}

// NewNoOpenSessionError はオープンセッション不在エラーを生成する。
func NewNoOpenSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeNoOpenSession,
		Message:  "オープン中の勤務セッションがありません。",
		Category: "state",
		Action:   "先にチェックインしてください。",
	}
}

// NewAlreadyIdleError はアイドル二重開始エラーを生成する。
func NewAlreadyIdleError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyIdle,
		Message:  "すでにアイドル状態です。",
		Category: "state",
		Action:   "アイドルを終了してから再度開始してください。",
	}
}

// NewNotIdleError はアイドル未開始エラーを生成する。
func NewNotIdleError() *APIError {
	return &APIError{
		Code:     ErrCodeNotIdle,
		Message:  "アイドル状態ではありません。",
		Category: "state",
		Action:   "アイドル開始後に終了を呼び出してください。",
	}
}

// NewInvalidTimestampError はタイムスタンプ逆行エラーを生成する。
// セッション内のイベント時刻は単調非減少でなければならない。
func NewInvalidTimestampError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimestamp,
		Message:  "イベント時刻が直前のイベントより過去になっています。",
		Category: "validation",
		Action:   "クライアントの時刻設定を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名はすでに使用されています: %s", username),
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}
