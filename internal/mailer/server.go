package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nao1215/notihub/pkg/metrics"
	"github.com/nao1215/notihub/pkg/middleware"
)

// serviceName はログとメトリクスに付与するサービス名。
const serviceName = "mailer"

// Server はメール送信サービスのHTTPサーバー。
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	sender     Sender
	cfg        Config
	logger     *zap.Logger
	// now はフッターの年の算出に使う。
	now func() time.Time
}

// NewServer は新しいメール送信サーバーを生成する。
func NewServer(cfg Config, logger *zap.Logger) (*Server, error) {
	sender, err := NewSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(serviceName))

	s := &Server{
		router: router,
		sender: sender,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName, "provider": sender.Name()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))
	s.registerRoutes(api)

	return s, nil
}

// Run はHTTPサーバーを起動する。Shutdownで停止した場合はnilを返す。
func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown は処理中のリクエストを待ってからサーバーを停止する。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(api *gin.RouterGroup) {
	internal := api.Group("/internal")
	internal.Use(middleware.RequireRole(middleware.RoleSystem, middleware.RoleAdmin))
	internal.POST("/mail", s.handleSend())
}

// sendRequest はメール送信リクエストのJSON構造。
type sendRequest struct {
	ToAddress string `json:"to_address"`
	Subject   string `json:"subject"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// validate は宛先と件名を検証し、正規化した宛先アドレスを返す。
func (r sendRequest) validate() (string, error) {
	to := strings.TrimSpace(r.ToAddress)
	if to == "" {
		return "", errors.New("to_address は必須です")
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", fmt.Errorf("to_address が不正です: %w", err)
	}
	if strings.TrimSpace(r.Subject) == "" && strings.TrimSpace(r.Title) == "" {
		return "", errors.New("subject または title を指定してください")
	}
	return addr.Address, nil
}

// handleSend はメールを組み立てて送信するハンドラ。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		to, err := req.validate()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		subject := req.Subject
		if strings.TrimSpace(subject) == "" {
			subject = req.Title
		}
		title := req.Title
		if strings.TrimSpace(title) == "" {
			title = subject
		}
		html, err := renderNotification(templateData{
			Brand:          s.cfg.Brand,
			SupportAddress: s.cfg.SupportAddress,
			Title:          title,
			Body:           req.Body,
			Year:           s.now().Year(),
		})
		if err != nil {
			s.logger.Error("メール本文の生成に失敗しました", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メール本文の生成に失敗しました"})
			return
		}

		ctx := c.Request.Context()
		if s.cfg.SendTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
			defer cancel()
		}

		provider := s.sender.Name()
		err = s.sender.Send(ctx, Message{
			From:     s.cfg.From,
			FromName: s.cfg.FromName,
			To:       to,
			Subject:  subject,
			HTML:     html,
			Text:     req.Body,
		})
		if err != nil {
			metrics.MailsTotal.WithLabelValues(provider, "failed").Inc()
			s.logger.Error("メール送信に失敗しました",
				zap.String("provider", provider),
				zap.String("tenant_id", middleware.GetTenantID(c)),
				zap.Error(err),
			)
			c.JSON(http.StatusBadGateway, gin.H{"error": "メール送信に失敗しました"})
			return
		}
		metrics.MailsTotal.WithLabelValues(provider, "sent").Inc()
		c.JSON(http.StatusAccepted, gin.H{"message": "メールを送信しました"})
	}
}
