package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig はCORSミドルウェアの設定。
type CORSConfig struct {
	// AllowedOrigins はクロスオリジンリクエストを許可するオリジン。"*" は全オリジンを許可する。
	AllowedOrigins []string
	// AllowedHeaders は許可するリクエストヘッダー。空の場合はデフォルト値を使用する。
	AllowedHeaders []string
	// MaxAge はプリフライト結果のキャッシュ秒数。0の場合は86400。
	MaxAge int
}

// defaultAllowedHeaders は通知APIが受け付けるヘッダー。
var defaultAllowedHeaders = []string{"Authorization", "Content-Type", headerKeyTenantID}

// CORS は設定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// 許可されていないオリジンからのプリフライトも204で終了するが、許可ヘッダーは付与しない。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	allowAll := false
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}

	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = defaultAllowedHeaders
	}
	allowHeaders := strings.Join(headers, ", ")

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	maxAgeValue := strconv.Itoa(maxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, ok := origins[origin]
		if origin != "" && (ok || allowAll) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Max-Age", maxAgeValue)
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
