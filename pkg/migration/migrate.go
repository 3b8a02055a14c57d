// Package migration はSQLiteデータベースのスキーママイグレーションを管理する。
// fs.FSからSQLファイルを読み込み、schema_migrationsテーブルで適用状態を追跡する。
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// upSuffix はマイグレーションファイルの接尾辞。
// ファイル名形式: 000001_description.up.sql
const upSuffix = ".up.sql"

// ErrDuplicateVersion は同じバージョンのマイグレーションファイルが複数あることを表す。
var ErrDuplicateVersion = errors.New("マイグレーションのバージョンが重複しています")

// Migration は1つのマイグレーションファイル。
type Migration struct {
	// Version はファイル名先頭の数値。
	Version int
	// Name はバージョンと接尾辞を除いたファイル名。
	Name string
	// path はfs.FS内のパス。
	path string
}

// Migrator はfs.FSに置かれたマイグレーションをデータベースに適用する。
type Migrator struct {
	db     *sql.DB
	fsys   fs.FS
	dir    string
	logger zerolog.Logger
}

// New はdir配下のマイグレーションを適用するMigratorを生成する。
func New(db *sql.DB, fsys fs.FS, dir string, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, fsys: fsys, dir: dir, logger: logger}
}

// Up は未適用のマイグレーションをバージョン順に適用し、適用したものを返す。
// 各マイグレーションはバージョンの記録と同じトランザクションで実行する。
func (m *Migrator) Up(ctx context.Context) ([]Migration, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return nil, fmt.Errorf("マイグレーション管理テーブルの作成に失敗: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}

	migrations, err := m.Pending()
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, mig := range migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return ran, fmt.Errorf("マイグレーション %06d の適用に失敗: %w", mig.Version, err)
		}
		m.logger.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("マイグレーションを適用しました")
		ran = append(ran, mig)
	}
	return ran, nil
}

// Applied は適用済みのバージョンを昇順で返す。
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("適用済みバージョンの読み取りに失敗: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Pending はdir配下のマイグレーションファイルをバージョン順に返す。
// 形式に合わないファイルは無視する。
func (m *Migrator) Pending() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイルの収集に失敗: %w", err)
	}

	seen := make(map[int]string)
	var migrations []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, upSuffix) {
			continue
		}
		prefix, rest, found := strings.Cut(name, "_")
		if !found {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("%w: %s と %s", ErrDuplicateVersion, other, name)
		}
		seen[version] = name

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(rest, upSuffix),
			path:    path.Join(m.dir, name),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	content, err := fs.ReadFile(m.fsys, mig.path)
	if err != nil {
		return fmt.Errorf("ファイル読み込みに失敗: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("SQL実行に失敗: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name,
	); err != nil {
		return fmt.Errorf("バージョン記録に失敗: %w", err)
	}
	return tx.Commit()
}
