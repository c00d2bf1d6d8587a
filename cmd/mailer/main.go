// メール送信サービスのエントリポイント。
// 通知サービスからの依頼を受けてSMTPまたはSendGridでメールを送信する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/notihub/internal/mailer"
	"github.com/nao1215/notihub/pkg/config"
	"github.com/nao1215/notihub/pkg/logger"
	"github.com/nao1215/notihub/pkg/metrics"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	cfg, err := mailer.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	l, err := logger.New("mailer", cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}
	defer func() { _ = l.Sync() }()

	metrics.Init()

	server, err := mailer.NewServer(cfg, l)
	if err != nil {
		l.Fatal("メール送信サーバーの初期化に失敗", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		l.Info("メール送信サービスを起動します",
			zap.String("port", cfg.Port),
			zap.String("provider", cfg.Provider),
		)
		errCh <- server.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			l.Fatal("メール送信サービスの起動に失敗", zap.Error(err))
		}
	case <-ctx.Done():
	}

	l.Info("メール送信サービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("メール送信サービスの停止に失敗", zap.Error(err))
	}
}
