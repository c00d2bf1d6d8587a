// Package event は通知サービスのドメインイベントと、その送信先となるPublisherを提供する。
//
// イベントはEvent Store（HTTP）またはKafkaトピックに送信できる。送信先は
// EVENT_SINK 環境変数で切り替える。
package event
