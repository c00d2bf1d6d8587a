package eventstore

import "github.com/nao1215/notihub/pkg/config"

// Config はイベントストアサービスの設定。
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	LogLevel  string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() Config {
	return Config{
		Port:      config.GetEnvOr("PORT", "8084"),
		DBPath:    config.GetEnvOr("DB_PATH", "/data/eventstore.db"),
		JWTSecret: config.GetEnvOr("JWT_SECRET", "dev-secret-key"),
		LogLevel:  config.GetEnvOr("LOG_LEVEL", "info"),
	}
}

func (c Config) dsn() string {
	return "file:" + c.DBPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
