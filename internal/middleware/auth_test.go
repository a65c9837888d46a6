package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/kintai/internal/auth"
	"github.com/hitoshi/kintai/internal/model"
)

// mockTokenVerifier はTokenVerifierのモック実装。
type mockTokenVerifier struct {
	resolveFunc func(raw string) (*auth.TokenPayload, error)
}

func (m *mockTokenVerifier) ResolveToken(raw string) (*auth.TokenPayload, error) {
	return m.resolveFunc(raw)
}

var _ TokenVerifier = (*mockTokenVerifier)(nil)

func validPayload() *auth.TokenPayload {
	return &auth.TokenPayload{
		UserID:   "user-1",
		Username: "taro",
		Name:     "山田太郎",
		Role:     model.RoleUser,
	}
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("エラーレスポンスの解析に失敗: %v", err)
	}
	return body
}

func TestAuthMiddleware_InjectsUserIntoContext(t *testing.T) {
	verifier := &mockTokenVerifier{
		resolveFunc: func(raw string) (*auth.TokenPayload, error) {
			if raw != "valid-token" {
				t.Errorf("渡されたトークン = %q, want %q", raw, "valid-token")
			}
			return validPayload(), nil
		},
	}

	var gotUserID string
	var gotRole model.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		gotRole, _ = RoleFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session/current", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	NewAuthMiddleware(verifier)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotUserID != "user-1" {
		t.Errorf("コンテキストのuserID = %q, want %q", gotUserID, "user-1")
	}
	if gotRole != model.RoleUser {
		t.Errorf("コンテキストのrole = %q, want %q", gotRole, model.RoleUser)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	verifier := &mockTokenVerifier{
		resolveFunc: func(raw string) (*auth.TokenPayload, error) {
			t.Fatal("ヘッダーなしでResolveTokenが呼ばれるべきでない")
			return nil, nil
		},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("認証失敗時にnextが呼ばれるべきでない")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session/current", nil)
	rec := httptest.NewRecorder()

	NewAuthMiddleware(verifier)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, rec)
	if body.Code != model.ErrCodeTokenMalformed {
		t.Errorf("エラーコード = %s, want %s", body.Code, model.ErrCodeTokenMalformed)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	verifier := &mockTokenVerifier{
		resolveFunc: func(raw string) (*auth.TokenPayload, error) {
			return nil, model.NewTokenExpiredError()
		},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("期限切れトークンでnextが呼ばれるべきでない")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/session/current", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()

	NewAuthMiddleware(verifier)(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, rec)
	if body.Code != model.ErrCodeTokenExpired {
		t.Errorf("エラーコード = %s, want %s", body.Code, model.ErrCodeTokenExpired)
	}
}

func TestAuthMiddleware_NonBearerScheme(t *testing.T) {
	verifier := &mockTokenVerifier{
		resolveFunc: func(raw string) (*auth.TokenPayload, error) {
			t.Fatal("Basic認証ヘッダーでResolveTokenが呼ばれるべきでない")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session/current", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()

	NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAdminMiddleware_AllowsAdmin(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	req = req.WithContext(ContextWithUser(req.Context(), "admin-1", model.RoleAdmin))
	rec := httptest.NewRecorder()

	NewRequireAdminMiddleware()(next).ServeHTTP(rec, req)

	if !called {
		t.Error("管理者リクエストでnextが呼ばれていない")
	}
}

func TestRequireAdminMiddleware_RejectsNonAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("一般ユーザーでnextが呼ばれるべきでない")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	req = req.WithContext(ContextWithUser(req.Context(), "user-1", model.RoleUser))
	rec := httptest.NewRecorder()

	NewRequireAdminMiddleware()(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	body := decodeErrorBody(t, rec)
	if body.Code != "FORBIDDEN" {
		t.Errorf("エラーコード = %s, want FORBIDDEN", body.Code)
	}
}

func TestRequireAdminMiddleware_RejectsMissingRole(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
	rec := httptest.NewRecorder()

	NewRequireAdminMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("ロールなしでnextが呼ばれるべきでない")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
