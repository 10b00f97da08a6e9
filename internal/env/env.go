// Package env resolves environment variables that were renamed, so older
// deployments setting MALWARE_PASSWORD keep working.
package env

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

func defaultWarn(format string, args ...any) {
	log.Warn().Str("component", "env").Msgf(format, args...)
}

var (
	mu     sync.Mutex
	warn   = defaultWarn
	warned = map[string]bool{}
)

// Lookup returns newKey's value when it is set. Otherwise the legacy oldKey
// is consulted, logging a deprecation warning the first time it is used.
func Lookup(newKey, oldKey string) (string, bool) {
	if v, ok := os.LookupEnv(newKey); ok {
		return v, true
	}
	v, ok := os.LookupEnv(oldKey)
	if !ok {
		return "", false
	}

	mu.Lock()
	first := !warned[oldKey]
	warned[oldKey] = true
	fn := warn
	mu.Unlock()
	if first {
		fn("%s is deprecated; use %s", oldKey, newKey)
	}
	return v, true
}

// ResetWarningsForTesting forgets which legacy keys have been reported.
func ResetWarningsForTesting() {
	mu.Lock()
	defer mu.Unlock()
	clear(warned)
}

// SetWarnLoggerForTesting replaces the warning sink and returns a function
// restoring the previous one.
func SetWarnLoggerForTesting(fn func(format string, args ...any)) (restore func()) {
	mu.Lock()
	previous := warn
	warn = fn
	mu.Unlock()
	return func() {
		mu.Lock()
		warn = previous
		mu.Unlock()
	}
}
