package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/model"
)

// ActivityLogServiceInterface はアクティビティログハンドラーが必要とするサービスインターフェース。
type ActivityLogServiceInterface interface {
	// Recent は指定ユーザーの直近ログを新しい順に返す。
	Recent(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)
}

// ActivityLogHandler はアクティビティログ参照のHTTPハンドラー。
type ActivityLogHandler struct {
	service ActivityLogServiceInterface
}

// NewActivityLogHandler はActivityLogHandlerを生成する。
func NewActivityLogHandler(service ActivityLogServiceInterface) *ActivityLogHandler {
	return &ActivityLogHandler{
		service: service,
	}
}

// activityLogResponse はアクティビティログのAPIレスポンス。
type activityLogResponse struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ListLogs は直近のアクティビティログを新しい順に返す。
// GET /api/logs?limit=100
func (h *ActivityLogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMalformedError())
		return
	}

	limit := parseLimit(r, 0)

	logs, err := h.service.Recent(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]activityLogResponse, 0, len(logs))
	for _, log := range logs {
		responses = append(responses, activityLogResponse{
			ID:        log.ID,
			UserID:    log.UserID,
			Type:      string(log.Type),
			Timestamp: log.Timestamp,
			Metadata:  log.Metadata,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"logs": responses,
	})
}
