package log

import (
	"go.uber.org/zap"
)

var base = zap.NewNop()

// Init builds the process logger. prod selects the JSON production encoder,
// otherwise the console development encoder is used.
func Init(prod bool) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if prod {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	base = l
	return l, nil
}

// L returns the process logger. Safe to call before Init (no-op logger).
func L() *zap.Logger { return base }

func Sync() { _ = base.Sync() }
