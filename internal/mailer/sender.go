package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Message は送信するメール1通。
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
	Text     string
}

// Sender はメールを外部のメール配送手段に引き渡す。
type Sender interface {
	// Send はメールを送信する。
	Send(ctx context.Context, msg Message) error
	// Name はメトリクスとログに使うプロバイダ名を返す。
	Name() string
}

// NewSender は設定されたプロバイダのSenderを生成する。
func NewSender(cfg Config, logger *zap.Logger) (Sender, error) {
	switch cfg.Provider {
	case ProviderSMTP:
		return &SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Timeout:  cfg.SendTimeout,
		}, nil
	case ProviderSendGrid:
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY が設定されていません")
		}
		return NewSendGridSender(cfg.SendGridAPIKey, cfg.SendGridHost), nil
	case ProviderLog:
		return &LogSender{logger: logger}, nil
	default:
		return nil, fmt.Errorf("不明なメールプロバイダ: %q", cfg.Provider)
	}
}

// SMTPSender はSMTPサーバー経由でメールを送信する。
// ポート465では接続時にTLSを使い、それ以外ではサーバーが対応していればSTARTTLSを使う。
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	// TLSConfig が nil の場合はHostをServerNameにした設定を使う。
	TLSConfig *tls.Config
}

// Name はプロバイダ名を返す。
func (s *SMTPSender) Name() string { return ProviderSMTP }

func (s *SMTPSender) tlsConfig() *tls.Config {
	if s.TLSConfig != nil {
		return s.TLSConfig
	}
	return &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
}

// Send はメールを送信する。
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	dialer := &net.Dialer{Timeout: s.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if s.Port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("SMTPサーバーへの接続に失敗: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTPクライアントの生成に失敗: %w", err)
	}
	defer c.Close()

	if s.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig()); err != nil {
				return fmt.Errorf("STARTTLSに失敗: %w", err)
			}
		}
	}
	if s.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return fmt.Errorf("SMTP認証に失敗: %w", err)
		}
	}
	if err := c.Mail(msg.From); err != nil {
		return fmt.Errorf("送信元の指定に失敗: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("宛先の指定に失敗: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("本文の送信開始に失敗: %w", err)
	}
	if _, err := w.Write(buildMIME(msg)); err != nil {
		return fmt.Errorf("本文の送信に失敗: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("本文の送信に失敗: %w", err)
	}
	return c.Quit()
}

// buildMIME はヘッダーと本文からメールのデータ部を組み立てる。ヘッダーは名前順に並べる。
func buildMIME(msg Message) []byte {
	from := msg.From
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", msg.FromName), msg.From)
	}
	headers := map[string]string{
		"From":                      from,
		"To":                        msg.To,
		"Subject":                   mime.QEncoding.Encode("UTF-8", msg.Subject),
		"MIME-Version":              "1.0",
		"Content-Transfer-Encoding": "8bit",
	}
	body := msg.Text
	headers["Content-Type"] = `text/plain; charset="UTF-8"`
	if msg.HTML != "" {
		body = msg.HTML
		headers["Content-Type"] = `text/html; charset="UTF-8"`
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// defaultSendGridHost はSendGrid APIのホスト。
const defaultSendGridHost = "https://api.sendgrid.com"

// SendGridSender はSendGridのv3 APIでメールを送信する。
type SendGridSender struct {
	apiKey string
	host   string
}

// NewSendGridSender はSendGridSenderを生成する。hostが空の場合は本番APIを使う。
func NewSendGridSender(apiKey, host string) *SendGridSender {
	if host == "" {
		host = defaultSendGridHost
	}
	return &SendGridSender{apiKey: apiKey, host: host}
}

// Name はプロバイダ名を返す。
func (s *SendGridSender) Name() string { return ProviderSendGrid }

// Send はメールを送信する。
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(msg.FromName, msg.From)
	to := sgmail.NewEmail("", msg.To)
	message := sgmail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("SendGridへの送信に失敗: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("SendGrid APIエラー: status=%d, body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender はメールを送信せずログに記録する。開発環境で使用する。
type LogSender struct {
	logger *zap.Logger
}

// Name はプロバイダ名を返す。
func (s *LogSender) Name() string { return ProviderLog }

// Send はメールの宛先と件名をログに記録する。
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("メールを送信しました（ログ出力のみ）",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
