package fsrouter

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// BuildFunc は新しいルーターを組み立てる。
type BuildFunc func(ctx context.Context) (http.Handler, error)

// defaultDebounce は連続したファイル変更をまとめる待ち時間。
const defaultDebounce = 200 * time.Millisecond

// Reloader はルーター全体を再構築して差し替えるhttp.Handler。
// 個々のルーターは構築後に変更されず、再読み込みは常に新しいルーターとの置き換えで行う。
type Reloader struct {
	current  atomic.Pointer[http.Handler]
	build    BuildFunc
	root     string
	logger   zerolog.Logger
	debounce time.Duration
	// OnReload は再読み込みのたびに結果とともに呼ばれる。
	OnReload func(err error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewReloader は初回のルーターを構築してReloaderを生成する。
// 初回の構築に失敗した場合はエラーを返す。
func NewReloader(ctx context.Context, root string, build BuildFunc, logger zerolog.Logger) (*Reloader, error) {
	h, err := build(ctx)
	if err != nil {
		return nil, err
	}
	r := &Reloader{
		build:    build,
		root:     root,
		logger:   logger,
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
	}
	r.current.Store(&h)
	return r, nil
}

// ServeHTTP は現在のルーターにリクエストを渡す。
func (r *Reloader) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	(*r.current.Load()).ServeHTTP(w, req)
}

// Reload はルーターを再構築して差し替える。
// 構築に失敗した場合は現在のルーターを維持してエラーを返す。
func (r *Reloader) Reload(ctx context.Context) error {
	r.logger.Info().Str("root", r.root).Msg("ルートを再読み込みします")

	h, err := r.build(ctx)
	if r.OnReload != nil {
		r.OnReload(err)
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("ルートの再読み込みに失敗したため現在のルーターを維持します")
		return fmt.Errorf("ルートの再読み込みに失敗: %w", err)
	}

	r.current.Store(&h)
	r.logger.Info().Msg("ルートを再読み込みしました")
	return nil
}

// Watch はルートディレクトリ配下の変更を監視し、変更があればReloadする。
// 監視はctxの終了かStopの呼び出しで止まる。
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ファイル監視の作成に失敗: %w", err)
	}

	dir := r.root
	if hasModuleExt(dir) {
		dir = filepath.Dir(dir)
	}
	if err := addTree(watcher, dir); err != nil {
		_ = watcher.Close()
		return err
	}

	r.mu.Lock()
	r.watcher = watcher
	r.mu.Unlock()

	go r.watchLoop(ctx, watcher)
	r.logger.Info().Str("root", dir).Msg("ルートの変更を監視します")
	return nil
}

// Stop は監視を停止する。
func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
		r.watcher = nil
	}
}

func (r *Reloader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				// 新しいディレクトリも監視対象に加える
				_ = addTree(watcher, event.Name)
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Debug().Str("event", event.Op.String()).Str("file", event.Name).Msg("ルートファイルが変更されました")
			timer.Reset(r.debounce)

		case <-timer.C:
			if err := r.Reload(ctx); err != nil {
				r.logger.Error().Err(err).Msg("ファイル監視による再読み込みに失敗")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error().Err(err).Msg("ファイル監視でエラーが発生")

		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// addTree はpath配下のすべてのディレクトリを監視対象に加える。
// fsnotifyはサブディレクトリを再帰的に監視しないため。
func addTree(watcher *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("%s の監視に失敗: %w", p, err)
		}
		return nil
	})
}
