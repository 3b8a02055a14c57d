package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Admin は管理者かどうか。
	Admin bool `json:"admin,omitempty"`
	// Roles はトークンに埋め込まれたロール。
	Roles []string `json:"roles,omitempty"`
}

const (
	contextKeyUserID = "user_id"
	contextKeyEmail  = "email"
	contextKeyAdmin  = "admin"
	contextKeyClaims = "claims"
)

// tokenIssuer はfsrouterが発行するトークンのissuer。
const tokenIssuer = "fsrouter"

// GenerateJWT はクレームに署名してJWTトークンを生成する。
// 有効期限と発行日時が未設定の場合は24時間の有効期限を設定する。
func GenerateJWT(secret string, claims JWTClaims) (string, error) {
	now := time.Now()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(24 * time.Hour))
	}
	if claims.Issuer == "" {
		claims.Issuer = tokenIssuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// EnsureAuthenticated はBearerトークンを検証する認証ガードを返す。
// 検証に成功した場合、コンテキストにユーザーID・メールアドレス・管理者フラグを設定する。
func EnsureAuthenticated(secret string) Handler {
	return func(c *gin.Context) error {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			return NewUserFacingError("Authorization header is required", http.StatusUnauthorized)
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			return NewUserFacingError("Malformed bearer token", http.StatusUnauthorized)
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return NewUserFacingError("Invalid token", http.StatusUnauthorized)
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyEmail, claims.Email)
		c.Set(contextKeyAdmin, claims.Admin)
		c.Set(contextKeyClaims, claims)
		return nil
	}
}

// EnsureAdmin は管理者のみ通過させるガードを返す。
// EnsureAuthenticatedが事前に実行されている必要がある。
func EnsureAdmin() Handler {
	return func(c *gin.Context) error {
		if !c.GetBool(contextKeyAdmin) {
			return NewUserFacingError("Administrator access is required", http.StatusForbidden)
		}
		return nil
	}
}

// ClaimsRoles はJWTクレームに含まれるロールを返すRolesResolver。
func ClaimsRoles(c *gin.Context) ([]string, error) {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil, nil
	}
	claims, _ := v.(*JWTClaims)
	if claims == nil {
		return nil, nil
	}
	return claims.Roles, nil
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// EnsureAuthenticatedが事前に実行されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}
