// Package tracker は勤務セッションの状態機械とアクティビティ集計を提供する。
//
// 状態遷移は CheckedOut → CheckedIn ⇄ Idle → CheckedOut で、
// 同一ユーザーの操作はユーザー別ミューテックスで直列化される。
// 加えてwork_sessionsの部分一意インデックスが、プロセスをまたいだ
// 二重チェックインを条件付き書き込みの失敗として検出する。
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

// DefaultHistoryLimit はHistoryのデフォルト取得件数。
const DefaultHistoryLimit = 50

// MetricsRecorder はセッション遷移のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordCheckIn()
	RecordCheckOut(activeMinutes int)
	RecordActivityEvent(activityType string)
}

// Service は勤務セッションのライフサイクルを管理する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.WorkSessionRepository
	locks       *keyedMutex
	metrics     MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(userRepo repository.UserRepository, sessionRepo repository.WorkSessionRepository, metrics MetricsRecorder) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		locks:       newKeyedMutex(),
		metrics:     metrics,
	}
}

// CheckIn は新しい勤務セッションを開始する。
// オープンセッションが既に存在する場合はAlreadyCheckedInを返す。
// 存在チェックとセッション作成はユーザー別ロックにより不可分に実行され、
// ロック外の競合（別プロセス等）は一意制約違反として同じエラーに写される。
func (s *Service) CheckIn(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error) {
	s.locks.lock(userID)
	defer s.locks.unlock(userID)

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user for check-in: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	open, err := s.sessionRepo.FindOpenByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	if open != nil {
		return nil, model.NewAlreadyCheckedInError()
	}

	session := &model.WorkSession{
		ID:          uuid.New().String(),
		UserID:      userID,
		CheckInTime: now,
		LastEventAt: now,
		Date:        now.Format("2006-01-02"),
	}

	err = s.sessionRepo.OpenWithLog(ctx, session, newLog(userID, model.ActivityCheckIn, now, nil))
	if errors.Is(err, repository.ErrDuplicateOpenSession) {
		return nil, model.NewAlreadyCheckedInError()
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCheckIn()
	}
	slog.Info("user checked in",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
	)
	return session, nil
}

// RecordActivity はオープンセッションのアクティビティ数を1増やす。
// アイドル期間中だった場合は、アクティビティの記録前に暗黙的にアイドルを
// 終了する（idle-endログを先に発行する）。明示的なIdleEnd呼び出しが
// 優先されるため、暗黙終了後のIdleEndはNotIdleとなる。
func (s *Service) RecordActivity(ctx context.Context, userID string, now time.Time, metadata map[string]string) (*model.WorkSession, error) {
	s.locks.lock(userID)
	defer s.locks.unlock(userID)

	session, err := s.openSession(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var logs []*model.ActivityLog
	if session.IsIdle() {
		logs = append(logs, s.foldIdle(session, now))
	}

	session.ActivityCount++
	session.LastEventAt = now
	logs = append(logs, newLog(userID, model.ActivityGeneric, now, metadata))

	if err := s.saveProgress(ctx, session, logs...); err != nil {
		return nil, err
	}
	s.recordEvent(model.ActivityGeneric)
	return session, nil
}

// IdleStart はアイドル期間を開始する。
// 既にアイドル中の場合はAlreadyIdleを返す。
func (s *Service) IdleStart(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error) {
	s.locks.lock(userID)
	defer s.locks.unlock(userID)

	session, err := s.openSession(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if session.IsIdle() {
		return nil, model.NewAlreadyIdleError()
	}

	idleStart := now
	session.IdleStartedAt = &idleStart
	session.LastEventAt = now

	if err := s.saveProgress(ctx, session, newLog(userID, model.ActivityIdleStart, now, nil)); err != nil {
		return nil, err
	}
	s.recordEvent(model.ActivityIdleStart)
	return session, nil
}

// IdleEnd はアイドル期間を終了し、経過分をidle_timeに加算する。
// アイドル中でない場合はNotIdleを返す。
func (s *Service) IdleEnd(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error) {
	s.locks.lock(userID)
	defer s.locks.unlock(userID)

	session, err := s.openSession(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !session.IsIdle() {
		return nil, model.NewNotIdleError()
	}

	log := s.foldIdle(session, now)
	session.LastEventAt = now

	if err := s.saveProgress(ctx, session, log); err != nil {
		return nil, err
	}
	s.recordEvent(model.ActivityIdleEnd)
	return session, nil
}

// CheckOut はオープンセッションをクローズし、稼働時間をユーザーの累計に畳み込む。
// アイドル期間が開いたままの場合は、チェックアウトの一部として先に
// idle_timeへ畳み込む（アイドル時間は決して無言で失われない）。
// 稼働時間は elapsed(checkIn, now) − idleTime を0未満にならないよう
// クランプした値となる。
func (s *Service) CheckOut(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error) {
	s.locks.lock(userID)
	defer s.locks.unlock(userID)

	session, err := s.openSession(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	var logs []*model.ActivityLog
	if session.IsIdle() {
		logs = append(logs, s.foldIdle(session, now))
	}

	active := minutesBetween(session.CheckInTime, now) - session.IdleTime
	if active < 0 {
		active = 0
	}

	checkOut := now
	session.CheckOutTime = &checkOut
	session.TotalActiveTime = active
	session.LastEventAt = now
	logs = append(logs, newLog(userID, model.ActivityCheckOut, now, nil))

	err = s.sessionRepo.CloseWithLogs(ctx, session, active, logs...)
	if errors.Is(err, repository.ErrSessionAlreadyClosed) {
		return nil, model.NewNoOpenSessionError()
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordCheckOut(active)
	}
	slog.Info("user checked out",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.Int("active_minutes", active),
		slog.Int("idle_minutes", session.IdleTime),
	)
	return session, nil
}

// CurrentSession はオープンセッションを返す。存在しない場合はnilを返す。
// キャッシュは持たず、常に永続化層から読み直す。
func (s *Service) CurrentSession(ctx context.Context, userID string) (*model.WorkSession, error) {
	return s.sessionRepo.FindOpenByUserID(ctx, userID)
}

// History は指定ユーザーのセッションをチェックイン時刻降順で返す。
// limitが0以下の場合はDefaultHistoryLimit。
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*model.WorkSession, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.sessionRepo.ListByUserID(ctx, userID, limit)
}

// openSession はオープンセッションを取得し、イベント時刻の単調性を検証する。
// セッションが存在しない場合はNoOpenSession、時刻が直前のイベントより
// 過去の場合はInvalidTimestampを返す。
func (s *Service) openSession(ctx context.Context, userID string, now time.Time) (*model.WorkSession, error) {
	session, err := s.sessionRepo.FindOpenByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}
	if session == nil {
		return nil, model.NewNoOpenSessionError()
	}
	if now.Before(session.LastEventAt) {
		return nil, model.NewInvalidTimestampError()
	}
	return session, nil
}

// foldIdle は開いているアイドル期間をidle_timeへ畳み込み、idle-endログを返す。
func (s *Service) foldIdle(session *model.WorkSession, now time.Time) *model.ActivityLog {
	session.IdleTime += minutesBetween(*session.IdleStartedAt, now)
	session.IdleStartedAt = nil
	return newLog(session.UserID, model.ActivityIdleEnd, now, nil)
}

// saveProgress はセッション更新を永続化し、クローズ競合をNoOpenSessionに写す。
func (s *Service) saveProgress(ctx context.Context, session *model.WorkSession, logs ...*model.ActivityLog) error {
	err := s.sessionRepo.SaveProgressWithLogs(ctx, session, logs...)
	if errors.Is(err, repository.ErrSessionAlreadyClosed) {
		return model.NewNoOpenSessionError()
	}
	return err
}

func (s *Service) recordEvent(typ model.ActivityType) {
	if s.metrics != nil {
		s.metrics.RecordActivityEvent(string(typ))
	}
}

// minutesBetween はfromからtoまでの経過分数を返す（分未満は切り捨て、負値は0）。
func minutesBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// newLog はアクティビティログエンティティを生成する。
func newLog(userID string, typ model.ActivityType, at time.Time, metadata map[string]string) *model.ActivityLog {
	return &model.ActivityLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Timestamp: at,
		Metadata:  metadata,
	}
}
