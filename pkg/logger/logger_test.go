package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// TestParseLevel はログレベル文字列の解釈を検証する。
func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "空文字はinfo", input: "", want: zapcore.InfoLevel},
		{name: "debug", input: "debug", want: zapcore.DebugLevel},
		{name: "大文字と空白を許容する", input: " WARN ", want: zapcore.WarnLevel},
		{name: "error", input: "error", want: zapcore.ErrorLevel},
		{name: "不明な値はエラー", input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestNew はロガーの生成を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("正常にロガーを生成できること", func(t *testing.T) {
		t.Parallel()

		l, err := New("notification", "debug")
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Error("debugレベルが有効になっていない")
		}
	})

	t.Run("不正なレベルの場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, err := New("notification", "loud"); err == nil {
			t.Error("エラーが返されなかった")
		}
	})
}
