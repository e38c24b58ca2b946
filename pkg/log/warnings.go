package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	gberrors "github.com/glassbox-ml/glassbox/pkg/errors"
)

// InitWarningLogger routes library warnings (ConvergenceWarning and friends)
// through a zerolog logger writing JSON lines to w. Warning types implementing
// zerolog.LogObjectMarshaler are embedded as structured objects; anything else
// is logged as a plain error field.
//
// The indirection through errors.SetZerologWarnFunc exists because pkg/errors
// cannot import this package.
func InitWarningLogger(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Str("channel", "warnings").Logger()

	gberrors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(m).Msg("warning")
			return
		}
		ev.Err(warning).Msg("warning")
	})
}
