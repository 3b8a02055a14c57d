// Package roles はロールゲートが参照するユーザーのロールを解決する。
//
// SQLiteに保存したロールを参照するStoreと、
// 別のロールサービスへ問い合わせるRemoteResolverを提供する。
// どちらもmiddleware.RolesResolverとしてfsrouterに注入する。
package roles
