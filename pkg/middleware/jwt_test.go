package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// parseTestToken はテスト用にトークンを検証付きでパースする。
func parseTestToken(t *testing.T, tokenStr string) *JWTClaims {
	t.Helper()
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		t.Fatalf("トークンのパースに失敗: %v", err)
	}
	if !token.Valid {
		t.Fatal("トークンが無効")
	}
	return claims
}

// newAuthRouter はJWTAuthを適用し、コンテキストの認証情報を返すルーターを構築する。
func newAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":   GetUserID(c),
			"tenant_id": GetTenantID(c),
			"role":      GetRole(c),
		})
	})
	return router
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("正常にJWTトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-123", "tenant-1", RoleAdmin, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := parseTestToken(t, tokenStr)
		if claims.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
		}
		if claims.TenantID != "tenant-1" {
			t.Errorf("TenantID = %q, want %q", claims.TenantID, "tenant-1")
		}
		if claims.Role != RoleAdmin {
			t.Errorf("Role = %q, want %q", claims.Role, RoleAdmin)
		}
		if claims.Issuer != "notihub" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "notihub")
		}
	})

	t.Run("ロール未指定の場合はuserになること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-1", "tenant-1", "", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		if claims := parseTestToken(t, tokenStr); claims.Role != RoleUser {
			t.Errorf("Role = %q, want %q", claims.Role, RoleUser)
		}
	})

	t.Run("有効期限がttl後に設定されること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "user-exp", "tenant-1", RoleUser, 2*time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := parseTestToken(t, tokenStr)
		expected := before.Add(2 * time.Hour)
		if claims.ExpiresAt.Time.Before(expected.Add(-time.Minute)) || claims.ExpiresAt.Time.After(expected.Add(time.Minute)) {
			t.Errorf("ExpiresAt = %v, want おおよそ %v", claims.ExpiresAt.Time, expected)
		}
	})

	t.Run("異なるシークレットでは検証に失敗すること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-1", "tenant-1", RoleUser, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		_, err = jwt.ParseWithClaims(tokenStr, &JWTClaims{}, func(_ *jwt.Token) (any, error) {
			return []byte("wrong-secret"), nil
		})
		if err == nil {
			t.Error("異なるシークレットで検証が成功してしまった")
		}
	})
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでコンテキストに認証情報が設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-1", "tenant-9", RoleAdmin, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["user_id"] != "user-1" || body["tenant_id"] != "tenant-9" || body["role"] != RoleAdmin {
			t.Errorf("認証情報 = %v", body)
		}
		if got := w.Header().Get("Tenant-Id"); got != "tenant-9" {
			t.Errorf("Tenant-Idヘッダー = %q, want %q", got, "tenant-9")
		}
	})

	t.Run("Authorizationヘッダーが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("Bearer接頭辞が無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "user-1", "tenant-1", RoleUser, time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("期限切れトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "user-1", "tenant-1", RoleUser, -time.Minute)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("テナントIDの無いトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "user-1", "", RoleUser, time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("異なるシークレットで署名されたトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT("another-secret", "user-1", "tenant-1", RoleUser, time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestRequireRole はRequireRoleミドルウェアを検証する。
func TestRequireRole(t *testing.T) {
	t.Parallel()

	newRouter := func(role string) *gin.Engine {
		router := gin.New()
		router.Use(func(c *gin.Context) {
			SetIdentity(c, "user-1", "tenant-1", role)
			c.Next()
		})
		router.GET("/admin", RequireRole(RoleAdmin, RoleSystem), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return router
	}

	tests := []struct {
		name string
		role string
		want int
	}{
		{name: "adminは通過できること", role: RoleAdmin, want: http.StatusOK},
		{name: "systemは通過できること", role: RoleSystem, want: http.StatusOK},
		{name: "userは403になること", role: RoleUser, want: http.StatusForbidden},
		{name: "ロール無しは403になること", role: "", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			w := httptest.NewRecorder()
			newRouter(tt.role).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// TestGetters はコンテキストからの取得関数を検証する。
func TestGetters(t *testing.T) {
	t.Parallel()

	t.Run("値が設定されていない場合は空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if GetUserID(c) != "" || GetTenantID(c) != "" || GetRole(c) != "" {
			t.Error("空文字列が返されなかった")
		}
	})

	t.Run("文字列以外の型の場合は空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("tenant_id", 12345)
		if got := GetTenantID(c); got != "" {
			t.Errorf("GetTenantID() = %q, want empty", got)
		}
	})
}
