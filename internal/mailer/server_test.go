package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/nao1215/notihub/pkg/metrics"
	"github.com/nao1215/notihub/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSender は送信内容を記録するテスト用Sender。
type fakeSender struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

// setupTestServer はJWTの代わりにヘッダーから認証情報を設定するテスト用サーバーを構築する。
func setupTestServer(t *testing.T, sender Sender) *gin.Engine {
	t.Helper()

	router := gin.New()
	s := &Server{
		router: router,
		sender: sender,
		cfg: Config{
			From:           "no-reply@example.com",
			FromName:       "notihub",
			Brand:          "notihub",
			SupportAddress: "support@example.com",
			SendTimeout:    time.Second,
		},
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC) },
	}
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		middleware.SetIdentity(c, "svc", c.GetHeader("Tenant-Id"), c.GetHeader("X-Role"))
		c.Next()
	})
	s.registerRoutes(api)
	return router
}

func postMail(t *testing.T, router *gin.Engine, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("リクエストボディのシリアライズに失敗: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/mail", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tenant-Id", "tenant-1")
	req.Header.Set("X-Role", role)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleSend(t *testing.T) {
	t.Parallel()

	t.Run("内部サービスからの依頼でメールを送信すること", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{name: "fake-ok"}
		router := setupTestServer(t, sender)
		counter := metrics.MailsTotal.WithLabelValues("fake-ok", "sent")
		before := testutil.ToFloat64(counter)

		w := postMail(t, router, middleware.RoleSystem, map[string]string{
			"to_address": "User <user@example.com>",
			"subject":    "お知らせ",
			"title":      "お知らせ",
			"body":       "本文です",
		})
		if w.Code != http.StatusAccepted {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusAccepted, w.Body.String())
		}

		sent := sender.messages()
		if len(sent) != 1 {
			t.Fatalf("送信件数 = %d, want 1", len(sent))
		}
		msg := sent[0]
		if msg.To != "user@example.com" {
			t.Errorf("To = %q, want user@example.com", msg.To)
		}
		if msg.From != "no-reply@example.com" || msg.Subject != "お知らせ" || msg.Text != "本文です" {
			t.Errorf("メッセージ = %+v", msg)
		}
		if !strings.Contains(msg.HTML, "<h2>お知らせ</h2>") || !strings.Contains(msg.HTML, "2026") {
			t.Errorf("HTML本文にタイトルまたは年が含まれていない")
		}
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("送信成功数の増分 = %v, want 1", got)
		}
	})

	t.Run("件名が無い場合はタイトルを件名にすること", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{name: "fake-title"}
		router := setupTestServer(t, sender)

		w := postMail(t, router, middleware.RoleAdmin, map[string]string{
			"to_address": "user@example.com",
			"title":      "タイトルのみ",
		})
		if w.Code != http.StatusAccepted {
			t.Fatalf("ステータスコード = %d, want %d (body=%s)", w.Code, http.StatusAccepted, w.Body.String())
		}
		if sent := sender.messages(); len(sent) != 1 || sent[0].Subject != "タイトルのみ" {
			t.Errorf("送信内容 = %+v", sent)
		}
	})

	t.Run("送信に失敗した場合は502になること", func(t *testing.T) {
		t.Parallel()

		router := setupTestServer(t, &fakeSender{name: "fake-ng", err: errors.New("smtp down")})
		counter := metrics.MailsTotal.WithLabelValues("fake-ng", "failed")
		before := testutil.ToFloat64(counter)

		w := postMail(t, router, middleware.RoleSystem, map[string]string{
			"to_address": "user@example.com",
			"subject":    "s",
		})
		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadGateway)
		}
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("送信失敗数の増分 = %v, want 1", got)
		}
	})

	tests := []struct {
		name string
		role string
		body any
		want int
	}{
		{name: "一般ユーザーは403", role: middleware.RoleUser, body: map[string]string{"to_address": "a@example.com", "subject": "s"}, want: http.StatusForbidden},
		{name: "宛先が無い場合は400", role: middleware.RoleSystem, body: map[string]string{"subject": "s"}, want: http.StatusBadRequest},
		{name: "宛先が不正な場合は400", role: middleware.RoleSystem, body: map[string]string{"to_address": "not-an-address", "subject": "s"}, want: http.StatusBadRequest},
		{name: "件名もタイトルも無い場合は400", role: middleware.RoleSystem, body: map[string]string{"to_address": "a@example.com"}, want: http.StatusBadRequest},
		{name: "JSONでない場合は400", role: middleware.RoleSystem, body: "text", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sender := &fakeSender{name: "fake-invalid"}
			router := setupTestServer(t, sender)
			w := postMail(t, router, tt.role, tt.body)
			if w.Code != tt.want {
				t.Errorf("ステータスコード = %d, want %d (body=%s)", w.Code, tt.want, w.Body.String())
			}
			if len(sender.messages()) != 0 {
				t.Error("送信されてしまった")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	s, err := NewServer(Config{Port: "0", JWTSecret: "secret", Provider: ProviderLog, Brand: "notihub"}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if body["provider"] != ProviderLog {
		t.Errorf("provider = %q, want %q", body["provider"], ProviderLog)
	}

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/internal/mail", strings.NewReader(`{}`)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("トークン無しのステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	token, err := middleware.GenerateJWT("secret", "notification", "tenant-1", middleware.RoleSystem, time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/mail",
		strings.NewReader(`{"to_address":"user@example.com","subject":"s","body":"b"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("システムトークンのステータスコード = %d, want %d (body=%s)", w.Code, http.StatusAccepted, w.Body.String())
	}
}
