// Package middleware はfsrouterが組み立てるハンドラチェーンの各ステージを提供する。
//
// チェーン共通の呼び出し規約（Handler）と非同期エラーアダプタ（Catch）、
// ユーザー向けエラーの分類と終端エラーハンドラ、ロールによる認可、
// JWT認証ガード、リクエストID、パニックリカバリ、CORS設定を含む。
package middleware
