// Package activitylog は追記専用のアクティビティイベント台帳を提供する。
package activitylog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

const (
	// DefaultRecentLimit はRecentのデフォルト取得件数。
	DefaultRecentLimit = 100
	// MaxRecentLimit はRecentの最大取得件数。
	MaxRecentLimit = 500
)

// Service はアクティビティログの追記と参照を提供する。
// 台帳は追記専用であり、ビジネスロジックによる追記の拒否は行わない
// （冪等性の管理は呼び出し側の責務）。
type Service struct {
	logRepo repository.ActivityLogRepository
}

// NewService はServiceを生成する。
func NewService(logRepo repository.ActivityLogRepository) *Service {
	return &Service{logRepo: logRepo}
}

// Append はアクティビティイベントを1件追記し、ログIDを返す。
// 永続化の失敗以外では失敗しない。
func (s *Service) Append(ctx context.Context, userID string, typ model.ActivityType, timestamp time.Time, metadata map[string]string) (string, error) {
	if !typ.IsValid() {
		return "", fmt.Errorf("invalid activity type: %s", typ)
	}

	log := &model.ActivityLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Timestamp: timestamp,
		Metadata:  metadata,
	}
	if err := s.logRepo.Append(ctx, log); err != nil {
		return "", err
	}
	return log.ID, nil
}

// Recent は指定ユーザーの直近ログを新しい順に返す。
// ライブフィードではなく、呼び出し時点のスナップショットを返す。
// limitが0以下の場合はDefaultRecentLimit、上限はMaxRecentLimit。
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]*model.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return s.logRepo.ListRecentByUserID(ctx, userID, limit)
}
