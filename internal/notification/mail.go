package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/nao1215/notihub/pkg/httpclient"
)

// MailRequest はメール送信サービスへの送信依頼。
type MailRequest struct {
	ToAddress string `json:"to_address"`
	Subject   string `json:"subject"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Mailer はメール送信を外部サービスに依頼する。配信結果は追跡しない。
type Mailer interface {
	SendMail(ctx context.Context, req MailRequest) error
}

// HTTPMailer はメール送信サービスのAPIに送信依頼をPOSTするMailer。
type HTTPMailer struct {
	client *httpclient.Client
}

// NewHTTPMailer はメール送信サービス向けのクライアントからHTTPMailerを生成する。
func NewHTTPMailer(client *httpclient.Client) *HTTPMailer {
	return &HTTPMailer{client: client}
}

// SendMail は POST /api/v1/internal/mail で送信を依頼する。
func (m *HTTPMailer) SendMail(ctx context.Context, req MailRequest) error {
	return m.client.PostJSON(ctx, "/api/v1/internal/mail", req, nil)
}

type nopMailer struct{}

func (nopMailer) SendMail(context.Context, MailRequest) error { return nil }

// dispatchMail は通知種別がEMAILの場合、または送信先アドレスが指定された場合にメール送信を依頼する。
// 失敗してもログに記録するだけで通知の作成は成功とする。
func (s *Service) dispatchMail(ctx context.Context, n Notification, toAddress string) {
	if n.Type != TypeEmail && toAddress == "" {
		return
	}
	if toAddress == "" {
		s.logger.Warn("メール送信先が指定されていないため送信を省略しました",
			zap.String("tenant_id", n.TenantID),
			zap.String("notification_id", n.ID),
		)
		return
	}

	req := MailRequest{
		ToAddress: toAddress,
		Subject:   n.Title,
		Title:     n.Title,
		Body:      n.Message,
	}
	ctx = httpclient.WithTenantID(ctx, n.TenantID)
	if err := s.mailer.SendMail(ctx, req); err != nil {
		s.logger.Warn("メール送信の依頼に失敗しました",
			zap.String("tenant_id", n.TenantID),
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
	}
}
