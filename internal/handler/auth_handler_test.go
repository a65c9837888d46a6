package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kintai/internal/auth"
	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/model"
)

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	authenticateFunc func(ctx context.Context, username, password string) (string, *auth.TokenPayload, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, username, password string) (string, *auth.TokenPayload, error) {
	return m.authenticateFunc(ctx, username, password)
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

// mockUserGetter はUserGetterのモック実装。
type mockUserGetter struct {
	getFunc func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserGetter) Get(ctx context.Context, id string) (*model.User, error) {
	return m.getFunc(ctx, id)
}

var _ UserGetter = (*mockUserGetter)(nil)

func TestLogin_Success(t *testing.T) {
	expiresAt := time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC)
	svc := &mockAuthService{
		authenticateFunc: func(ctx context.Context, username, password string) (string, *auth.TokenPayload, error) {
			if username != "taro" || password != "secret" {
				t.Errorf("資格情報 = (%q, %q)", username, password)
			}
			return "signed-token", &auth.TokenPayload{
				UserID:    "user-1",
				Username:  "taro",
				Name:      "山田太郎",
				Role:      model.RoleUser,
				ExpiresAt: expiresAt,
			}, nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"taro","password":"secret"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if body.Token != "signed-token" {
		t.Errorf("Token = %q", body.Token)
	}
	if body.User.ID != "user-1" || body.User.Role != "user" {
		t.Errorf("User = %+v", body.User)
	}
	if !body.ExpiresAt.Equal(expiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", body.ExpiresAt, expiresAt)
	}
}

func TestLogin_InvalidCredentials_Returns401(t *testing.T) {
	svc := &mockAuthService{
		authenticateFunc: func(ctx context.Context, username, password string) (string, *auth.TokenPayload, error) {
			return "", nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"taro","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeAPIError(t, rec)
	if body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("エラーコード = %s, want %s", body.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestLogin_MalformedBody_Returns400(t *testing.T) {
	svc := &mockAuthService{
		authenticateFunc: func(ctx context.Context, username, password string) (string, *auth.TokenPayload, error) {
			t.Fatal("不正なボディでAuthenticateが呼ばれるべきでない")
			return "", nil, nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogin_MissingFields_Returns400(t *testing.T) {
	svc := &mockAuthService{
		authenticateFunc: func(ctx context.Context, username, password string) (string, *auth.TokenPayload, error) {
			t.Fatal("空の資格情報でAuthenticateが呼ばれるべきでない")
			return "", nil, nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"taro"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogout_Returns204(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserGetter{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	users := &mockUserGetter{
		getFunc: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{
				ID:               id,
				Username:         "taro",
				Name:             "山田太郎",
				Role:             model.RoleUser,
				TotalWorkingTime: 450,
			}, nil
		},
	}
	h := NewAuthHandler(&mockAuthService{}, users)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "user-1", model.RoleUser))
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body userResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ID != "user-1" || body.TotalWorkingTime != 450 {
		t.Errorf("レスポンス = %+v", body)
	}
}

func TestMe_Unauthenticated_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserGetter{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
