package tm

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logOnce   sync.Once
	pkgLogger *slog.Logger
	debugOn   bool
)

// logger returns the package-wide structured logger. It is configured
// once from ITM_DEBUG; see DESIGN.md for why log/slog rather than a
// third-party logging package is used here.
func logger() *slog.Logger {
	logOnce.Do(func() {
		debugOn = os.Getenv("ITM_DEBUG") != ""
		level := slog.LevelWarn
		if debugOn {
			level = slog.LevelDebug
		}
		pkgLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	})
	return pkgLogger
}

// debugEnabled reports whether ITM_DEBUG is set, gating the per-dispatch
// started/committed debug counters. The per-reason restart counters are
// kept regardless of it.
func debugEnabled() bool {
	logger() // ensure initialized
	return debugOn
}
