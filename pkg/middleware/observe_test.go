package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nao1215/notihub/pkg/metrics"
)

// TestRequestLogger はRequestLoggerミドルウェアを検証する。
func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("ステータスに応じたレベルで記録されること", func(t *testing.T) {
		t.Parallel()

		core, logs := observer.New(zap.DebugLevel)
		router := gin.New()
		router.Use(func(c *gin.Context) {
			SetIdentity(c, "user-1", "tenant-1", RoleUser)
			c.Next()
		})
		router.Use(RequestLogger(zap.New(core)))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
		router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

		for _, path := range []string{"/ok", "/bad"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		}

		entries := logs.All()
		if len(entries) != 2 {
			t.Fatalf("ログ件数 = %d, want 2", len(entries))
		}
		if entries[0].Level != zap.InfoLevel {
			t.Errorf("/ok のレベル = %v, want info", entries[0].Level)
		}
		if entries[1].Level != zap.WarnLevel {
			t.Errorf("/bad のレベル = %v, want warn", entries[1].Level)
		}
		if got := entries[0].ContextMap()["tenant_id"]; got != "tenant-1" {
			t.Errorf("tenant_id = %v, want tenant-1", got)
		}
	})
}

// TestMetrics はMetricsミドルウェアを検証する。
func TestMetrics(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(Metrics("middleware-test"))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	counter := metrics.HTTPRequestsTotal.WithLabelValues("middleware-test", "/items/:id", http.MethodGet, "200")
	before := testutil.ToFloat64(counter)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("リクエスト数の増分 = %v, want 3", got)
	}
}
