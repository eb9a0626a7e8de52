//go:build debug

package pool

import (
	"fmt"

	"go.uber.org/zap"
)

var debugLogger = func() *zap.SugaredLogger {
	l, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		panic(fmt.Sprintf("pool: debug logger: %v", err))
	}
	return l.Named("pool").Sugar()
}()

// debugLog traces unit lifecycle when built with -tags debug.
func debugLog(format string, args ...any) {
	debugLogger.Debugf(format, args...)
}
