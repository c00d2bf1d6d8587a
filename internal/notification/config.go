package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/notihub/pkg/config"
)

// イベントの送信先。
const (
	EventSinkHTTP  = "http"
	EventSinkKafka = "kafka"
	EventSinkNone  = "none"
)

// Config は通知サービスの起動設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string
	// JWTSecret はJWTの署名検証に使うシークレット。
	JWTSecret string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// EventSink はドメインイベントの送信先（http / kafka / none）。
	EventSink string
	// EventStoreURL はEvent StoreサービスのベースURL。
	EventStoreURL string
	// KafkaBrokers はKafkaブローカーのアドレス。
	KafkaBrokers []string
	// KafkaTopic はイベントを書き込むトピック。
	KafkaTopic string
	// MailerURL はメール送信サービスのベースURL。空の場合はメールを送信しない。
	MailerURL string
	// StoreTimeout は1回の操作に許すストレージ処理時間。
	StoreTimeout time.Duration
	// LogLevel はログレベル。
	LogLevel string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() (Config, error) {
	timeout, err := config.GetDurationOr("STORE_TIMEOUT", defaultStoreTimeout)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:           config.GetEnvOr("PORT", "8086"),
		DBPath:         config.GetEnvOr("DB_PATH", "/data/notification.db"),
		JWTSecret:      config.GetEnvOr("JWT_SECRET", "dev-secret-key"),
		AllowedOrigins: config.GetListOr("FRONTEND_URL", []string{"http://localhost:3000"}),
		EventSink:      strings.ToLower(config.GetEnvOr("EVENT_SINK", EventSinkHTTP)),
		EventStoreURL:  config.GetEnvOr("EVENTSTORE_URL", "http://localhost:8084"),
		KafkaBrokers:   config.GetListOr("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:     config.GetEnvOr("KAFKA_TOPIC", "notification-events"),
		MailerURL:      config.GetEnvOr("MAILER_URL", "http://localhost:8087"),
		StoreTimeout:   timeout,
		LogLevel:       config.GetEnvOr("LOG_LEVEL", "info"),
	}

	switch cfg.EventSink {
	case EventSinkHTTP, EventSinkKafka, EventSinkNone:
	default:
		return Config{}, fmt.Errorf("EVENT_SINK の値が不正です: %q", cfg.EventSink)
	}
	return cfg, nil
}

// dsn はSQLiteの接続文字列を返す。
func (c Config) dsn() string {
	return "file:" + c.DBPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
