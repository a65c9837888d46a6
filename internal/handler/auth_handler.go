// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/kintai/internal/auth"
	"github.com/hitoshi/kintai/internal/middleware"
	"github.com/hitoshi/kintai/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Authenticate は資格情報を検証し、署名付きトークンとペイロードを返す。
	Authenticate(ctx context.Context, username, password string) (string, *auth.TokenPayload, error)
}

// UserGetter は認証済みユーザーの取得インターフェース。
// user.Serviceの部分集合として定義する。
type UserGetter interface {
	Get(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler はトークン認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	users   UserGetter
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, users UserGetter) *AuthHandler {
	return &AuthHandler{
		service: service,
		users:   users,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Token     string            `json:"token"`
	User      tokenUserResponse `json:"user"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// tokenUserResponse はトークンペイロード由来のユーザー情報。
type tokenUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// Login はユーザー名とパスワードによるログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	if req.Username == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ユーザー名とパスワードは必須です。",
			Category: "validation",
			Action:   "ユーザー名とパスワードを入力してください。",
		})
		return
	}

	token, payload, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{
		Token: token,
		User: tokenUserResponse{
			ID:       payload.UserID,
			Username: payload.Username,
			Name:     payload.Name,
			Role:     string(payload.Role),
		},
		ExpiresAt: payload.ExpiresAt,
	})
}

// Logout はログアウトを処理する。
// トークンはサーバー側に保持しないため、破棄はクライアント側の責務となる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMalformedError())
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}
