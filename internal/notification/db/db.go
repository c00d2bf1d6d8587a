// Package notificationdb は通知サービスのSQLiteテーブルに対する型付きクエリを提供する。
package notificationdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX は *sql.DB と *sql.Tx の共通インターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New はクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries はテーブルごとのクエリをまとめる。
type Queries struct {
	db DBTX
}

// WithTx はトランザクション上でクエリを実行するQueriesを返す。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// timeLayout は日時カラムの保存形式。固定長なので文字列比較が時刻順になる。
const timeLayout = "2006-01-02 15:04:05.000000000"

// formatTime は日時をUTCの保存形式に変換する。
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeColumn は日時カラムを time.Time に読み込む sql.Scanner。
type timeColumn struct {
	dst *time.Time
}

// Scan は sql.Scanner を実装する。
func (c timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*c.dst = v.UTC()
		return nil
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	case nil:
		*c.dst = time.Time{}
		return nil
	default:
		return fmt.Errorf("日時カラムの型が不正です: %T", src)
	}
}

func (c timeColumn) parse(s string) error {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("日時カラムのパースに失敗: %w", err)
	}
	*c.dst = t
	return nil
}

// boolToInt は真偽値をINTEGERカラムの値に変換する。
func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
