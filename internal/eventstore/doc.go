// Package eventstore はイベントストアサービスの内部実装を提供する。
//
// 通知サービスが発行したドメインイベント（通知の作成・削除、既読状態の変更、
// グループメンバーの変更）をテナントごとに追記専用で永続化する。
// バージョンはテナントとAggregateIDの組ごとに1から採番する。
//
// 主な機能:
//   - イベントの追記（同じIDの再送は既存のイベントを返す）
//   - AggregateIDによるイベント取得（通知ごとの監査用）
//   - イベントタイプによるイベント取得
//   - 日時指定によるイベント取得
package eventstore
