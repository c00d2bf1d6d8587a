package mailer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/notihub/pkg/config"
)

// メールプロバイダ。
const (
	ProviderSMTP     = "smtp"
	ProviderSendGrid = "sendgrid"
	ProviderLog      = "log"
)

// Config はメール送信サービスの設定。
type Config struct {
	Port      string
	JWTSecret string
	LogLevel  string

	Provider       string
	From           string
	FromName       string
	Brand          string
	SupportAddress string
	SendTimeout    time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string

	SendGridAPIKey string
	SendGridHost   string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() (Config, error) {
	timeout, err := config.GetDurationOr("MAIL_SEND_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	smtpPort, err := strconv.Atoi(config.GetEnvOr("SMTP_PORT", "587"))
	if err != nil {
		return Config{}, fmt.Errorf("SMTP_PORT の値が不正です: %w", err)
	}

	cfg := Config{
		Port:           config.GetEnvOr("PORT", "8087"),
		JWTSecret:      config.GetEnvOr("JWT_SECRET", "dev-secret-key"),
		LogLevel:       config.GetEnvOr("LOG_LEVEL", "info"),
		Provider:       strings.ToLower(config.GetEnvOr("MAIL_PROVIDER", ProviderLog)),
		From:           config.GetEnvOr("MAIL_FROM", "no-reply@example.com"),
		FromName:       config.GetEnvOr("MAIL_FROM_NAME", "notihub"),
		Brand:          config.GetEnvOr("MAIL_BRAND", "notihub"),
		SupportAddress: config.GetEnvOr("MAIL_SUPPORT_ADDRESS", "support@example.com"),
		SendTimeout:    timeout,
		SMTPHost:       config.GetEnvOr("SMTP_HOST", "localhost"),
		SMTPPort:       smtpPort,
		SMTPUsername:   config.GetEnvOr("SMTP_USERNAME", ""),
		SMTPPassword:   config.GetEnvOr("SMTP_PASSWORD", ""),
		SendGridAPIKey: config.GetEnvOr("SENDGRID_API_KEY", ""),
		SendGridHost:   config.GetEnvOr("SENDGRID_HOST", ""),
	}
	switch cfg.Provider {
	case ProviderSMTP, ProviderSendGrid, ProviderLog:
	default:
		return Config{}, fmt.Errorf("MAIL_PROVIDER の値が不正です: %q", cfg.Provider)
	}
	return cfg, nil
}
