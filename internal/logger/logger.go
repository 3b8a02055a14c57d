// Package logger はzerologのロガーを設定から生成する。
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New はレベルと出力形式を指定してロガーを生成する。
// 不正なレベルが指定された場合はinfoとして扱う。
func New(level string, pretty bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, pretty)
}

// NewWithWriter は出力先を指定してロガーを生成する。
func NewWithWriter(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "fsrouter").Logger()
}
