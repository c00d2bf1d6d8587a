// Package migrations は通知サービスのスキーマ定義を埋め込む。
package migrations

import "embed"

// FS は *.up.sql ファイルを含む。
//
//go:embed *.up.sql
var FS embed.FS
