package app

import (
	"os"
	"sync"
	"sync/atomic"
)

// testModeEnv makes binaries exit before touching redis or PostgreSQL so
// `go test ./...` can build and run cmd packages safely.
const testModeEnv = "AGROACCESS_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func readTestMode() {
	switch os.Getenv(testModeEnv) {
	case "1", "true", "yes":
		testMode.Store(true)
	default:
		testMode.Store(false)
	}
}

// InTestMode reports whether runtime side effects should be skipped.
func InTestMode() bool {
	testModeOnce.Do(readTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads the flag after the environment changed.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	readTestMode()
}
