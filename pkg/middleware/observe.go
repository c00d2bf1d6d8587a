package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/notihub/pkg/metrics"
)

// RequestLogger はリクエストごとにメソッド、パス、ステータス、処理時間を記録するGinミドルウェアを返す。
func RequestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if tenantID := GetTenantID(c); tenantID != "" {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= 500:
			l.Error("リクエスト処理完了", fields...)
		case status >= 400:
			l.Warn("リクエスト処理完了", fields...)
		default:
			l.Info("リクエスト処理完了", fields...)
		}
	}
}

// Metrics はHTTPリクエスト数と処理時間をPrometheusに記録するGinミドルウェアを返す。
// パスはルート定義（例: /api/v1/users/:user_id/notifications）で集計する。
func Metrics(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestsTotal.WithLabelValues(service, path, method, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(service, path, method).Observe(time.Since(start).Seconds())
	}
}
