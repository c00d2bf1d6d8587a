// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 通知サービスからメール送信サービスへの送信依頼や、Event Storeへのイベント送信など、
// サービス間の通信パターンを統一する。ユーザーIDとテナントIDはコンテキスト経由で
// X-User-ID / Tenant-Id ヘッダーとして伝播する。
package httpclient
