// Package notification はテナント単位の通知サービスを提供する。
//
// 通知の作成と配信先の解決（ユーザー一覧またはグループ）、受信者ごとの
// 配信状態レコードの作成、既読・未読の切り替え、保持期間内の通知の
// ページング取得を行う通知エンジン（Service）と、それを公開するGinの
// HTTPサーバー（Server）を含む。
//
// 配信状態は受信者1人につき1件だけ作成し、すべての操作はテナントIDで
// スコープされる。作成・削除・既読変更はドメインイベントとして
// Event StoreまたはKafkaへ送信する。
package notification
