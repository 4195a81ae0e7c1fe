package log

import (
	"os"
	"sync"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

var (
	providerMu     sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(os.Stderr, LevelWarn)
)

func init() {
	// 警告は pkg/errors から構造化ログとして出力される
	errors.SetZerologWarnFunc(func(w error) {
		GetLoggerWithName("warnings").Warn(w.Error(), WarningKey, w)
	})
}

// SetProvider replaces the global provider. A nil provider is ignored.
func SetProvider(p LoggerProvider) {
	if p == nil {
		return
	}
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = p
}

// GetProvider returns the current global provider.
func GetProvider() LoggerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider
}

// GetLogger returns the global provider's default logger.
func GetLogger() Logger {
	return GetProvider().GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	return GetProvider().GetLoggerWithName(name)
}

// SetLevel sets the minimum level of the global provider.
func SetLevel(level Level) {
	GetProvider().SetLevel(level)
}

// OrDefault returns l, or the named global logger when l is nil.
func OrDefault(l Logger, name string) Logger {
	if l != nil {
		return l
	}
	return GetLoggerWithName(name)
}
