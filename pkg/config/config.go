// Package config は環境変数と.envファイルからの設定読み込みを提供する。
//
// 各サービスは起動時にLoadDotEnvを呼び出し、その後GetEnvOr等で
// 個別の設定値を取得する。環境変数が.envより優先される。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv はカレントディレクトリ（またはpathsで指定したファイル）の.envを読み込む。
// ファイルが存在しない場合はエラーにしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return nil
}

// GetEnvOr は環境変数の値を返す。未設定または空の場合はfallbackを返す。
func GetEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetDurationOr は環境変数をtime.Durationとして解釈する。
// 未設定の場合はfallback、解釈できない場合はエラーを返す。
func GetDurationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s の値が不正です（%q）: %w", key, v, err)
	}
	return d, nil
}

// GetListOr はカンマ区切りの環境変数をスライスとして返す。空要素は除外する。
func GetListOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
