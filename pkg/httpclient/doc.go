// Package httpclient は外部サービスからJSONを取得するHTTPクライアントを提供する。
//
// ロール解決のようにリクエスト処理中に別サービスへ問い合わせる場合に使用する。
// 受け付けたリクエストのヘッダーをコンテキスト経由で引き継ぐことができる。
package httpclient
