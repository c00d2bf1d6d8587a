// 通知サービスのエントリポイント。
// ユーザーまたはグループ宛ての通知を作成・保存し、既読状態を管理する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/notihub/internal/notification"
	"github.com/nao1215/notihub/pkg/config"
	"github.com/nao1215/notihub/pkg/logger"
	"github.com/nao1215/notihub/pkg/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	cfg, err := notification.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	l, err := logger.New("notification", cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = l.Sync() }()

	metrics.Init()

	server, err := notification.NewServer(cfg, l)
	if err != nil {
		l.Fatal("通知サーバーの初期化に失敗", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		l.Info("通知サービスを起動します",
			zap.String("port", cfg.Port),
			zap.String("event_sink", cfg.EventSink),
		)
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			l.Fatal("通知サービスの起動に失敗", zap.Error(err))
		}
	case <-ctx.Done():
	}

	l.Info("通知サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("通知サービスの停止に失敗", zap.Error(err))
	}
}
