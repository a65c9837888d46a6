package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/model"
	"github.com/hitoshi/kintai/internal/repository"
)

// mockUserRepo はUserRepositoryのモック実装。
type mockUserRepo struct {
	findByUsernameFunc     func(ctx context.Context, username string) (*model.User, error)
	updateLastActivityFunc func(ctx context.Context, id string, at time.Time) error
	lastActivityUpdated    bool
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFunc != nil {
		return m.findByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error { return nil }

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) { return nil, nil }

func (m *mockUserRepo) UpdateLastActivity(ctx context.Context, id string, at time.Time) error {
	m.lastActivityUpdated = true
	if m.updateLastActivityFunc != nil {
		return m.updateLastActivityFunc(ctx, id, at)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error { return nil }

var _ repository.UserRepository = (*mockUserRepo)(nil)

// mockLoginRecorder はLoginRecorderのモック実装。
type mockLoginRecorder struct {
	successes int
	failures  int
}

func (m *mockLoginRecorder) RecordLogin(success bool) {
	if success {
		m.successes++
	} else {
		m.failures++
	}
}

// テスト全体で1回だけハッシュ化する（bcryptは遅い）
var testPasswordHash = func() string {
	hasher := NewPasswordHasher(4)
	hash, err := hasher.Hash("correct-password")
	if err != nil {
		panic(err)
	}
	return hash
}()

func newAuthTestService(repo *mockUserRepo, recorder *mockLoginRecorder) *Service {
	hasher := NewPasswordHasher(4)
	tokens := NewTokenIssuer("test-secret", time.Hour)
	var metrics LoginRecorder
	if recorder != nil {
		metrics = recorder
	}
	return NewService(repo, hasher, tokens, metrics)
}

func storedUser() *model.User {
	return &model.User{
		ID:           "user-1",
		Username:     "taro",
		Name:         "山田太郎",
		PasswordHash: testPasswordHash,
		Role:         model.RoleUser,
	}
}

func TestAuthenticate_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			return storedUser(), nil
		},
	}
	recorder := &mockLoginRecorder{}
	svc := newAuthTestService(repo, recorder)

	token, payload, err := svc.Authenticate(context.Background(), "taro", "correct-password")
	if err != nil {
		t.Fatalf("Authenticate() がエラーを返した: %v", err)
	}
	if token == "" {
		t.Error("トークンが空文字")
	}
	if payload.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", payload.UserID, "user-1")
	}
	if !repo.lastActivityUpdated {
		t.Error("認証成功時にlast_activityが更新されていない")
	}
	if recorder.successes != 1 {
		t.Errorf("成功メトリクス = %d, want 1", recorder.successes)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			return storedUser(), nil
		},
	}
	recorder := &mockLoginRecorder{}
	svc := newAuthTestService(repo, recorder)

	_, _, err := svc.Authenticate(context.Background(), "taro", "wrong-password")
	assertAuthErrorCode(t, err, model.ErrCodeInvalidCredentials)

	if repo.lastActivityUpdated {
		t.Error("認証失敗時にlast_activityが更新された")
	}
	if recorder.failures != 1 {
		t.Errorf("失敗メトリクス = %d, want 1", recorder.failures)
	}
}

func TestAuthenticate_UnknownUser_SameError(t *testing.T) {
	// ユーザー不在とパスワード不一致は同一のエラーを返す（列挙攻撃の防止）
	repo := &mockUserRepo{}
	svc := newAuthTestService(repo, nil)

	_, _, unknownErr := svc.Authenticate(context.Background(), "nobody", "whatever")
	assertAuthErrorCode(t, unknownErr, model.ErrCodeInvalidCredentials)

	repo2 := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			return storedUser(), nil
		},
	}
	svc2 := newAuthTestService(repo2, nil)
	_, _, wrongErr := svc2.Authenticate(context.Background(), "taro", "wrong-password")

	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("エラーメッセージが一致しない: %q vs %q", unknownErr, wrongErr)
	}
}

func TestAuthenticate_RepositoryError(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newAuthTestService(repo, nil)

	_, _, err := svc.Authenticate(context.Background(), "taro", "correct-password")
	if err == nil {
		t.Fatal("リポジトリエラー時にエラーが返るべき")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("インフラエラーはAPIErrorに変換すべきでない: %v", err)
	}
}

func TestVerifyToken_ReturnsNilOnAnyFailure(t *testing.T) {
	svc := newAuthTestService(&mockUserRepo{}, nil)

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if payload := svc.VerifyToken(raw); payload != nil {
			t.Errorf("VerifyToken(%q) = %+v, want nil", raw, payload)
		}
	}
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	repo := &mockUserRepo{
		findByUsernameFunc: func(ctx context.Context, username string) (*model.User, error) {
			return storedUser(), nil
		},
	}
	svc := newAuthTestService(repo, nil)

	token, _, err := svc.Authenticate(context.Background(), "taro", "correct-password")
	if err != nil {
		t.Fatal(err)
	}

	payload := svc.VerifyToken(token)
	if payload == nil {
		t.Fatal("発行直後のトークンの検証に失敗した")
	}
	if payload.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", payload.UserID, "user-1")
	}
}

func TestResolveToken_DistinguishesExpiry(t *testing.T) {
	hasher := NewPasswordHasher(4)
	expiredTokens := NewTokenIssuer("test-secret", -time.Minute)
	svc := NewService(&mockUserRepo{}, hasher, expiredTokens, nil)

	token, _, err := expiredTokens.Issue(storedUser())
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.ResolveToken(token)
	assertAuthErrorCode(t, err, model.ErrCodeTokenExpired)

	_, err = svc.ResolveToken("garbage")
	assertAuthErrorCode(t, err, model.ErrCodeTokenMalformed)
}

func assertAuthErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	if err == nil {
		t.Fatalf("エラーが返るべき (want %s)", wantCode)
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIErrorが返るべき: %v", err)
	}
	if apiErr.Code != wantCode {
		t.Fatalf("エラーコード = %s, want %s", apiErr.Code, wantCode)
	}
}
