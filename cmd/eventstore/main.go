// イベントストアサービスのエントリポイント。
// 通知サービスが発行したドメインイベントをテナントごとに追記専用で保存する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/notihub/internal/eventstore"
	"github.com/nao1215/notihub/pkg/config"
	"github.com/nao1215/notihub/pkg/logger"
	"github.com/nao1215/notihub/pkg/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	cfg := eventstore.LoadConfig()

	l, err := logger.New("eventstore", cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = l.Sync() }()

	metrics.Init()

	server, err := eventstore.NewServer(cfg, l)
	if err != nil {
		l.Fatal("イベントストアの初期化に失敗", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		l.Info("イベントストアを起動します", zap.String("port", cfg.Port), zap.String("db_path", cfg.DBPath))
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			l.Fatal("イベントストアの起動に失敗", zap.Error(err))
		}
	case <-ctx.Done():
	}

	l.Info("イベントストアを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("イベントストアの停止に失敗", zap.Error(err))
	}
}
