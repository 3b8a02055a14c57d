// Package validation はJSON Schemaによるクエリパラメータとリクエストボディの検証ステージを提供する。
//
// スキーマはマウント時に一度だけコンパイルされる。検証に失敗したリクエストは
// このステージで400を返して終了し、終端エラーハンドラには到達しない。
package validation
