package roles

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/parallelworks/fsrouter/pkg/middleware"
	"github.com/parallelworks/fsrouter/pkg/migration"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store はSQLiteに保存したユーザーのロール。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// Open はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// インメモリDBは接続ごとに別のデータベースになるため1接続に制限する
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.New(db, migrations, "migrations", logger).Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Grant はユーザーにロールを付与する。付与済みの場合は何もしない。
func (s *Store) Grant(ctx context.Context, userID, role string) error {
	if userID == "" || role == "" {
		return fmt.Errorf("ユーザーIDとロールは必須です")
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)", userID, role,
	); err != nil {
		return fmt.Errorf("ロールの付与に失敗: %w", err)
	}
	return nil
}

// Revoke はユーザーからロールを取り消す。
func (s *Store) Revoke(ctx context.Context, userID, role string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = ? AND role = ?", userID, role,
	); err != nil {
		return fmt.Errorf("ロールの取り消しに失敗: %w", err)
	}
	return nil
}

// Roles はユーザーのロールを名前順で返す。
func (s *Store) Roles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role FROM user_roles WHERE user_id = ? ORDER BY role", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ロールの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("ロールの読み取りに失敗: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Resolver は認証済みユーザーのロールをStoreから引くRolesResolverを返す。
// 未認証のリクエストはロール無しとして扱う。
func (s *Store) Resolver() middleware.RolesResolver {
	return func(c *gin.Context) ([]string, error) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			return nil, nil
		}
		return s.Roles(c.Request.Context(), userID)
	}
}
