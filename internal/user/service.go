// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kintai/internal/auth"
	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

// Service はユーザーの作成・参照・削除のサービス層。
type Service struct {
	userRepo repository.UserRepository
	hasher   *auth.PasswordHasher
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, hasher *auth.PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
	}
}

// Create は新規ユーザーを作成する。パスワードはbcryptでハッシュ化して保存する。
// ユーザー名が重複している場合はUsernameTakenを返す。
// roleが空の場合は一般ユーザーとして作成する。
func (s *Service) Create(ctx context.Context, username, name, password string, role model.Role) (*model.User, error) {
	if username == "" || name == "" || password == "" {
		return nil, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ユーザー名、氏名、パスワードは必須です。",
			Category: "validation",
			Action:   "すべての項目を入力してください。",
		}
	}
	if role == "" {
		role = model.RoleUser
	}
	if !role.IsValid() {
		return nil, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  fmt.Sprintf("無効なロールです: %s", role),
			Category: "validation",
			Action:   "ロールには user または admin を指定してください。",
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		LastActivity: now,
	}

	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUsername) {
		return nil, model.NewUsernameTakenError(username)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// Get は指定IDのユーザーを取得する。見つからない場合はUserNotFoundを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// List は全ユーザーを作成日時昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.List(ctx)
}

// Withdraw はユーザーを削除する。
// work_sessionsとactivity_logsはCASCADE削除され、履歴ごと消える。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user for withdrawal: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user withdrawn",
		slog.String("user_id", userID),
		slog.String("username", user.Username),
	)
	return nil
}
