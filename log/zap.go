package log

import (
	"go.uber.org/zap"
)

// Logger is the process-wide logger. It is a no-op until one of the Init
// functions runs.
var Logger = zap.NewNop()

func InitProductionLogger() {
	Logger, _ = zap.NewProduction()
}

func InitDevelopmentLogger() {
	Logger, _ = zap.NewDevelopment()
}

// Named returns a child of Logger for one component
func Named(name string) *zap.Logger {
	return Logger.Named(name)
}

// Sync flushes buffered log entries
func Sync() {
	_ = Logger.Sync()
}
