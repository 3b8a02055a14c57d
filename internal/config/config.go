// Package config は環境変数からサーバーの設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvProduction は本番環境を表すAPP_ENVの値。
const EnvProduction = "production"

// Config はfsrouterサーバーの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// RoutesDir はルート定義ファイルのディレクトリ、または単一のファイル。
	RoutesDir string
	// Env は実行環境。production以外では未分類エラーの詳細を返す。
	Env string
	// LogLevel はzerologのログレベル。
	LogLevel string
	// LogPretty がtrueの場合、人が読みやすい形式でログを出力する。
	LogPretty bool
	// LogMounts がtrueの場合、ルートのマウント経過を出力する。
	LogMounts bool
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// RolesDB はロールを保存するSQLiteのDSN。
	RolesDB string
	// RolesURL が設定されている場合、ロールをこのサービスから取得する。
	RolesURL string
	// CORSOrigins はCORSで許可するオリジン。
	CORSOrigins []string
	// WatchRoutes がtrueの場合、ルート定義の変更を監視して再読み込みする。
	WatchRoutes bool
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOr("PORT", "8080"),
		RoutesDir:   getEnvOr("ROUTES_DIR", "./routes"),
		Env:         getEnvOr("APP_ENV", "development"),
		LogLevel:    getEnvOr("LOG_LEVEL", "info"),
		JWTSecret:   getEnvOr("JWT_SECRET", "dev-secret-key"),
		RolesDB:     getEnvOr("ROLES_DB", "file:roles.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"),
		RolesURL:    os.Getenv("ROLES_URL"),
		CORSOrigins: splitList(getEnvOr("CORS_ORIGINS", "http://localhost:3000")),
	}

	var err error
	if cfg.LogPretty, err = getBoolEnv("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.LogMounts, err = getBoolEnv("LOG_MOUNTS", true); err != nil {
		return nil, err
	}
	if cfg.WatchRoutes, err = getBoolEnv("WATCH_ROUTES", false); err != nil {
		return nil, err
	}

	if cfg.IsProduction() && cfg.JWTSecret == "dev-secret-key" {
		return nil, fmt.Errorf("本番環境ではJWT_SECRETの設定が必須です")
	}
	return cfg, nil
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("環境変数 %s の値が不正です: %w", key, err)
	}
	return b, nil
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
