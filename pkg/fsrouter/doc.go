// Package fsrouter はディレクトリ構成の規約に基づいてルートを探索し、Ginルーターにマウントする。
//
// ルートディレクトリ配下のエンドポイント定義ファイルを列挙し、ファイルパスからURLパターンを導出する。
// 各ファイルはHTTPメソッドごとのハンドラと、認証・管理者ガード・ロール・スキーマ検証の宣言を持ち、
// マウント時にメソッドごとのハンドラチェーンとして組み立てられる。
//
// マウント順はファイルパスの降順で決まる。パラメータ記号 ":" は英数字より前に並ぶため、
// 同じ接頭辞を持つ固定パスのルートがパラメータを含むルートより先に登録される。
//
// 主な機能:
//   - ルートファイルの探索（Discover）とパス導出（DerivePath）
//   - 定義ファイルの並行読み込みとマウント順の決定（LoadAll）
//   - ハンドラチェーンの組み立てと登録（MountModule, Mount）
//   - ルートツリー変更時のルーター再構築（Reloader）
package fsrouter
