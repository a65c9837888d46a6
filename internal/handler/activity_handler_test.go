package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/model"
)

// mockActivityLogService はActivityLogServiceInterfaceのモック実装。
type mockActivityLogService struct {
	recentFunc func(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error)
}

func (m *mockActivityLogService) Recent(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	return m.recentFunc(ctx, userID, limit)
}

var _ ActivityLogServiceInterface = (*mockActivityLogService)(nil)

func TestListLogs_ReturnsNewestFirst(t *testing.T) {
	svc := &mockActivityLogService{
		recentFunc: func(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
			return []*model.ActivityLog{
				{ID: "log-2", UserID: userID, Type: model.ActivityCheckOut, Timestamp: time.Date(2026, 1, 15, 17, 0, 0, 0, time.UTC)},
				{ID: "log-1", UserID: userID, Type: model.ActivityCheckIn, Timestamp: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)},
			}, nil
		},
	}
	h := NewActivityLogHandler(svc)

	rec := httptest.NewRecorder()
	h.ListLogs(rec, authedRequest(http.MethodGet, "/api/logs", ""))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Logs []activityLogResponse `json:"logs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(body.Logs))
	}
	if body.Logs[0].Type != "check-out" || body.Logs[1].Type != "check-in" {
		t.Errorf("ログの順序が不正: %v, %v", body.Logs[0].Type, body.Logs[1].Type)
	}
}

func TestListLogs_PassesLimit(t *testing.T) {
	var gotLimit int
	svc := &mockActivityLogService{
		recentFunc: func(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	h := NewActivityLogHandler(svc)

	rec := httptest.NewRecorder()
	h.ListLogs(rec, authedRequest(http.MethodGet, "/api/logs?limit=50", ""))

	if gotLimit != 50 {
		t.Errorf("limit = %d, want 50", gotLimit)
	}
}

func TestListLogs_Unauthenticated_Returns401(t *testing.T) {
	h := NewActivityLogHandler(&mockActivityLogService{})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rec := httptest.NewRecorder()
	h.ListLogs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
