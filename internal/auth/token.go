package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/kintai/internal/model"
)

// TokenPayload はトークンが運ぶユーザー識別情報を表す。
// サーバー側には発行後の状態を持たない、署名付きケイパビリティとして扱う。
type TokenPayload struct {
	UserID    string
	Username  string
	Name      string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims はJWTのクレーム表現。SubjectにユーザーIDを格納する。
type tokenClaims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer はHMAC署名付きトークンの発行と検証を提供する。
// ペイロードの改ざん・有効期限の延長はいずれも署名検証で弾かれる。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer はTokenIssuerを生成する。
// ttlはトークンの有効期間（発行時刻からの経過時間）を指定する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue はユーザー情報からHS256署名付きトークンを発行する。
func (i *TokenIssuer) Issue(user *model.User) (string, *TokenPayload, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(i.ttl)

	claims := tokenClaims{
		Username: user.Username,
		Name:     user.Name,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	payload := &TokenPayload{
		UserID:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Role:      user.Role,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	return signed, payload, nil
}

// Verify はトークンの署名と有効期限を検証し、ペイロードを返す。
// 不正な形式・署名不一致の場合はTokenMalformedを、
// 期限切れの場合はTokenExpiredを*model.APIErrorとして返す。
// クライアントが提示したexpiresAtは署名検証を通過した場合のみ信頼する。
func (i *TokenIssuer) Verify(raw string) (*TokenPayload, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewTokenExpiredError()
		}
		return nil, model.NewTokenMalformedError()
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, model.NewTokenMalformedError()
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, model.NewTokenMalformedError()
	}

	role := model.Role(claims.Role)
	if !role.IsValid() {
		return nil, model.NewTokenMalformedError()
	}

	return &TokenPayload{
		UserID:    claims.Subject,
		Username:  claims.Username,
		Name:      claims.Name,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
