// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// テナント対応のJWT認証とロール判定、リクエストログ、Prometheus計測、
// パニックリカバリ、CORS設定など、全サービスで共通して使用するミドルウェアを含む。
package middleware
