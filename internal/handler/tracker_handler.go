package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/model"
)

// TrackerServiceInterface は勤務セッションハンドラーが必要とするサービスインターフェース。
type TrackerServiceInterface interface {
	// CheckIn は新しい勤務セッションを開始する。
	CheckIn(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error)
	// CheckOut はオープンセッションをクローズし、稼働時間を確定する。
	CheckOut(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error)
	// RecordActivity はアクティビティを記録する。
	RecordActivity(ctx context.Context, userID string, now time.Time, metadata map[string]string) (*model.WorkSession, error)
	// IdleStart はアイドル期間を開始する。
	IdleStart(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error)
	// IdleEnd はアイドル期間を終了する。
	IdleEnd(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error)
	// CurrentSession はオープンセッションを返す。存在しない場合はnil。
	CurrentSession(ctx context.Context, userID string) (*model.WorkSession, error)
	// History はセッション履歴をチェックイン時刻降順で返す。
	History(ctx context.Context, userID string, limit int) ([]*model.WorkSession, error)
}

// TrackerHandler は勤務セッション管理のHTTPハンドラー。
type TrackerHandler struct {
	service TrackerServiceInterface
}

// NewTrackerHandler はTrackerHandlerを生成する。
func NewTrackerHandler(service TrackerServiceInterface) *TrackerHandler {
	return &TrackerHandler{
		service: service,
	}
}

// sessionEventRequest はセッション遷移リクエストのボディ。
// atを省略した場合はサーバー時刻を使用する。
type sessionEventRequest struct {
	At       string            `json:"at,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// sessionResponse は勤務セッションのAPIレスポンス。
type sessionResponse struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	CheckInTime     time.Time  `json:"check_in_time"`
	CheckOutTime    *time.Time `json:"check_out_time,omitempty"`
	IsIdle          bool       `json:"is_idle"`
	TotalActiveTime int        `json:"total_active_time"`
	IdleTime        int        `json:"idle_time"`
	ActivityCount   int        `json:"activity_count"`
	Date            string     `json:"date"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CheckIn はチェックインを処理する。
// POST /api/session/checkin
func (h *TrackerHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusCreated, h.service.CheckIn)
}

// CheckOut はチェックアウトを処理する。
// POST /api/session/checkout
func (h *TrackerHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.service.CheckOut)
}

// RecordActivity はアクティビティの記録を処理する。
// POST /api/session/activity
func (h *TrackerHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	userID, req, at, ok := h.parseEvent(w, r)
	if !ok {
		return
	}

	session, err := h.service.RecordActivity(r.Context(), userID, at, req.Metadata)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSessionResponse(w, http.StatusOK, session)
}

// IdleStart はアイドル開始を処理する。
// POST /api/session/idle/start
func (h *TrackerHandler) IdleStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.service.IdleStart)
}

// IdleEnd はアイドル終了を処理する。
// POST /api/session/idle/end
func (h *TrackerHandler) IdleEnd(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, http.StatusOK, h.service.IdleEnd)
}

// CurrentSession は現在のオープンセッションを返す。
// オープンセッションが存在しない場合は404を返す。
// GET /api/session/current
func (h *TrackerHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMalformedError())
		return
	}

	session, err := h.service.CurrentSession(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if session == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNoOpenSessionError())
		return
	}

	writeSessionResponse(w, http.StatusOK, session)
}

// History はセッション履歴を返す。
// GET /api/sessions?limit=50
func (h *TrackerHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMalformedError())
		return
	}

	limit := parseLimit(r, 0)

	sessions, err := h.service.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, toSessionResponse(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessions": responses,
	})
}

// transition はmetadataを持たないセッション遷移リクエストの共通処理。
func (h *TrackerHandler) transition(w http.ResponseWriter, r *http.Request, successStatus int, op func(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error)) {
	userID, _, at, ok := h.parseEvent(w, r)
	if !ok {
		return
	}

	session, err := op(r.Context(), userID, at)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSessionResponse(w, successStatus, session)
}

// parseEvent はユーザーIDとイベント時刻をリクエストから取り出す。
// ボディが空の場合は空のリクエストとして扱い、時刻はサーバー時刻となる。
func (h *TrackerHandler) parseEvent(w http.ResponseWriter, r *http.Request) (string, *sessionEventRequest, time.Time, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMalformedError())
		return "", nil, time.Time{}, false
	}

	req := &sessionEventRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
			return "", nil, time.Time{}, false
		}
	}

	at := time.Now().UTC()
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "時刻の形式が不正です。",
				Category: "validation",
				Action:   "RFC 3339形式（例: 2026-01-02T09:00:00Z）で指定してください。",
			})
			return "", nil, time.Time{}, false
		}
		at = parsed.UTC()
	}

	return userID, req, at, true
}

// --- ヘルパー関数 ---

// toSessionResponse はmodel.WorkSessionからAPIレスポンスに変換する。
func toSessionResponse(session *model.WorkSession) sessionResponse {
	return sessionResponse{
		ID:              session.ID,
		UserID:          session.UserID,
		CheckInTime:     session.CheckInTime,
		CheckOutTime:    session.CheckOutTime,
		IsIdle:          session.IsIdle(),
		TotalActiveTime: session.TotalActiveTime,
		IdleTime:        session.IdleTime,
		ActivityCount:   session.ActivityCount,
		Date:            session.Date,
	}
}

// writeSessionResponse はセッションのJSONレスポンスを書き込む。
func writeSessionResponse(w http.ResponseWriter, statusCode int, session *model.WorkSession) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// parseLimit はlimitクエリパラメータを解析する。不正・未指定の場合はfallbackを返す。
func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// newInvalidRequestError はリクエストボディ解析失敗のエラーを生成する。
func newInvalidRequestError() *model.APIError {
	return &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeTokenExpired, model.ErrCodeTokenMalformed:
		return http.StatusUnauthorized
	case model.ErrCodeAlreadyCheckedIn, model.ErrCodeAlreadyIdle, model.ErrCodeNotIdle:
		return http.StatusConflict
	case model.ErrCodeNoOpenSession:
		return http.StatusConflict
	case model.ErrCodeInvalidTimestamp, "INVALID_REQUEST":
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case "FORBIDDEN":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
