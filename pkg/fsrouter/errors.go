package fsrouter

import "errors"

var (
	// ErrInvalidModule は定義ファイルの内容が不正であることを表す。
	ErrInvalidModule = errors.New("エンドポイント定義が不正です")
	// ErrInvalidExport はHTTPメソッドのエクスポートがハンドラでもハンドラの一覧でもないことを表す。
	ErrInvalidExport = errors.New("HTTPメソッドのエクスポートが不正です")
	// ErrUnknownHandler はレジストリに存在しないハンドラ名が参照されたことを表す。
	ErrUnknownHandler = errors.New("未登録のハンドラです")
	// ErrMissingGuard は必要なガードが与えられていないことを表す。
	ErrMissingGuard = errors.New("必要なガードが設定されていません")
	// ErrRouteConflict はルーターへの登録が拒否されたことを表す。
	ErrRouteConflict = errors.New("ルートの登録に失敗しました")
)
