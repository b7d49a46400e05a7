package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init replaces the package logger. Development mode enables debug output
// and the console encoder.
func Init(environment string) error {
	var (
		l   *zap.Logger
		err error
	)
	if environment == "development" {
		l, err = zap.NewDevelopment(zap.AddCallerSkip(1))
	} else {
		l, err = zap.NewProduction(zap.AddCallerSkip(1))
	}
	if err != nil {
		return err
	}

	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// L returns the underlying sugared logger for structured key/value logging.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Info(format string, v ...interface{}) {
	L().Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	L().Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	L().Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	L().Warnf(format, v...)
}

func Sync() {
	_ = L().Sync()
}
