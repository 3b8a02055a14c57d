// Package server はルート定義ディレクトリをマウントしたHTTPサーバーを組み立てる。
//
// 共通ミドルウェア（リカバリ、リクエストID、アクセスログ、メトリクス、CORS、終端エラーハンドラ）と
// /health・/metrics を登録したGinエンジンに、fsrouterでルート定義をマウントする。
// ルート定義の監視が有効な場合は、変更のたびにエンジン全体を組み立て直して差し替える。
package server
