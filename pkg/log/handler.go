package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	crdb "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

// ErrFmtHandler decorates records that carry an error under ErrAttrKey.
// It adds the error class (ErrorTypeKey) and, when the error has a stack,
// the frame that created it (ErrSourceKey).
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with an ErrFmtHandler.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var logged error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		logged, _ = attr.Value.Any().(error)
		return false
	})
	if logged != nil {
		r.AddAttrs(slog.String(ErrorTypeKey, ErrorClass(logged)))
		if src, ok := errorSource(logged); ok {
			r.AddAttrs(slog.String(ErrSourceKey, src))
		}
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// ErrorClass は err を "shape"（入力形状）、"usage"（設定・利用方法）、
// "internal"（それ以外）に分類する。
func ErrorClass(err error) string {
	switch {
	case errors.IsShapeError(err):
		return "shape"
	case errors.IsUsageError(err):
		return "usage"
	default:
		return "internal"
	}
}

// errorSource は err に記録されたスタックから pkg/errors のコンストラクタを除いた
// 最も新しいフレームを返す
func errorSource(err error) (string, bool) {
	for e := err; e != nil; e = crdb.UnwrapOnce(e) {
		st := crdb.GetReportableStackTrace(e)
		if st == nil {
			continue
		}
		for i := len(st.Frames) - 1; i >= 0; i-- {
			f := st.Frames[i]
			if strings.HasSuffix(f.Module, "/pkg/errors") {
				continue
			}
			return fmt.Sprintf("%s:%d %s", f.Filename, f.Lineno, f.Function), true
		}
	}
	return "", false
}
