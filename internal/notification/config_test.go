package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 環境変数を変更するためt.Parallelは使わない。
func TestLoadConfig(t *testing.T) {
	t.Run("未設定の場合は既定値になること", func(t *testing.T) {
		for _, key := range []string{"PORT", "DB_PATH", "EVENT_SINK", "STORE_TIMEOUT", "KAFKA_BROKERS", "FRONTEND_URL"} {
			t.Setenv(key, "")
		}

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "8086", cfg.Port)
		require.Equal(t, EventSinkHTTP, cfg.EventSink)
		require.Equal(t, defaultStoreTimeout, cfg.StoreTimeout)
		require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
		require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	})

	t.Run("環境変数の値が反映されること", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("EVENT_SINK", "Kafka")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
		t.Setenv("STORE_TIMEOUT", "2s")
		t.Setenv("DB_PATH", "/tmp/n.db")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "9000", cfg.Port)
		require.Equal(t, EventSinkKafka, cfg.EventSink)
		require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
		require.Equal(t, 2*time.Second, cfg.StoreTimeout)
		require.Contains(t, cfg.dsn(), "file:/tmp/n.db?")
		require.Contains(t, cfg.dsn(), "foreign_keys(1)")
	})

	t.Run("不正な値はエラーになること", func(t *testing.T) {
		t.Setenv("EVENT_SINK", "carrier-pigeon")
		_, err := LoadConfig()
		require.Error(t, err)

		t.Setenv("EVENT_SINK", "")
		t.Setenv("STORE_TIMEOUT", "soon")
		_, err = LoadConfig()
		require.Error(t, err)
	})
}
