// Package auth は認証とトークン管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

// dummyHash はユーザー不在時のタイミング均一化に使うbcryptハッシュ。
// 照合は必ず失敗する（"kintai-dummy-password"のハッシュ）。
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// LoginRecorder はログイン試行のメトリクス記録インターフェース。
type LoginRecorder interface {
	RecordLogin(success bool)
}

// Service は認証に関するビジネスロジックを提供する。
// 資格情報の検証と署名付きトークンの発行・検証を担う。
type Service struct {
	userRepo repository.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenIssuer
	metrics  LoginRecorder
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(userRepo repository.UserRepository, hasher *PasswordHasher, tokens *TokenIssuer, metrics LoginRecorder) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  metrics,
	}
}

// Authenticate はユーザー名とパスワードを検証し、署名付きトークンを発行する。
// ユーザー不在とパスワード不一致はいずれも同一のInvalidCredentialsとして返し、
// ユーザー列挙を防ぐ。成功時はlast_activityを更新する。
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, *TokenPayload, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("failed to find user for authentication: %w", err)
	}
	if user == nil {
		// ユーザー不在でもハッシュ照合を実行し、応答時間の差を作らない
		s.hasher.Verify(password, dummyHash)
		s.recordLogin(false)
		return "", nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.recordLogin(false)
		return "", nil, model.NewInvalidCredentialsError()
	}

	if err := s.userRepo.UpdateLastActivity(ctx, user.ID, time.Now().UTC()); err != nil {
		return "", nil, fmt.Errorf("failed to update last activity: %w", err)
	}

	token, payload, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}

	s.recordLogin(true)
	slog.Info("user authenticated",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return token, payload, nil
}

// VerifyToken はトークンを検証し、ペイロードを返す。
// 不正・改ざん・期限切れのいずれの場合もnilを返し、panicや例外は発生させない。
func (s *Service) VerifyToken(raw string) *TokenPayload {
	payload, err := s.tokens.Verify(raw)
	if err != nil {
		return nil
	}
	return payload
}

// ResolveToken はトークンを検証し、失敗理由を区別した*model.APIErrorを返す。
// HTTPミドルウェアがTOKEN_EXPIREDとTOKEN_MALFORMEDを使い分けるために使用する。
func (s *Service) ResolveToken(raw string) (*TokenPayload, error) {
	return s.tokens.Verify(raw)
}

func (s *Service) recordLogin(success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(success)
	}
}
