package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ロール名。
const (
	// RoleUser は自分宛ての通知だけを操作できる一般ユーザー。
	RoleUser = "user"
	// RoleAdmin はテナント内の全通知を管理できる管理者。
	RoleAdmin = "admin"
	// RoleSystem は他サービスから通知を作成する内部クライアント。
	RoleSystem = "system"
)

// Ginコンテキストのキー。
const (
	contextKeyUserID   = "user_id"
	contextKeyTenantID = "tenant_id"
	contextKeyRole     = "role"
)

// jwtIssuer はトークン発行者。
const jwtIssuer = "notihub"

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// テナントIDとロールをサービス間で伝播するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// TenantID はユーザーが所属するテナントの識別子。
	TenantID string `json:"tenant_id"`
	// Role はユーザーのロール（user / admin / system）。
	Role string `json:"role"`
}

// headerKeyUserID と headerKeyTenantID はサービス間で識別子を伝播するためのHTTPヘッダーキー。
const (
	headerKeyUserID   = "X-User-ID"
	headerKeyTenantID = "Tenant-Id"
)

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// roleが空の場合は RoleUser として扱う。
func GenerateJWT(secret, userID, tenantID, role string, ttl time.Duration) (string, error) {
	if role == "" {
		role = RoleUser
	}
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
		},
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id"、"tenant_id"、"role" を設定する。
// テナントIDを持たないトークンは拒否する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		if claims.TenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンにテナントIDが含まれていません",
			})
			return
		}

		role := claims.Role
		if role == "" {
			role = RoleUser
		}

		c.Set(contextKeyUserID, claims.UserID)
		c.Set(contextKeyTenantID, claims.TenantID)
		c.Set(contextKeyRole, role)
		c.Header(headerKeyUserID, claims.UserID)
		c.Header(headerKeyTenantID, claims.TenantID)
		c.Next()
	}
}

// RequireRole は指定ロールのいずれかを持つリクエストのみ通過させるGinミドルウェアを返す。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, GetRole(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "この操作を行う権限がありません",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
func GetUserID(c *gin.Context) string {
	return getString(c, contextKeyUserID)
}

// GetTenantID はGinコンテキストからテナントIDを取得する。
func GetTenantID(c *gin.Context) string {
	return getString(c, contextKeyTenantID)
}

// GetRole はGinコンテキストからロールを取得する。
func GetRole(c *gin.Context) string {
	return getString(c, contextKeyRole)
}

// SetIdentity はGinコンテキストに認証情報を設定する。
// テストや内部ルーティングでJWTAuthの代わりに使用する。
func SetIdentity(c *gin.Context, userID, tenantID, role string) {
	c.Set(contextKeyUserID, userID)
	c.Set(contextKeyTenantID, tenantID)
	c.Set(contextKeyRole, role)
}

func getString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
