// Package mailer はメール送信サービスを提供する。
//
// 通知サービスからの内部リクエスト（POST /api/v1/internal/mail）を受け取り、
// HTMLテンプレートで本文を組み立ててSMTP・SendGrid・ログ出力のいずれかで送信する。
// 送信結果はプロバイダごとにPrometheusのカウンターへ記録する。
package mailer
