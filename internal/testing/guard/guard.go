// Package guard switches AGROACCESS_TEST_MODE on for any test binary that
// imports it, unless the caller already chose a value.
package guard

import "os"

// EnvVar is the flag read by app.InTestMode.
const EnvVar = "AGROACCESS_TEST_MODE"

func init() {
	if _, ok := os.LookupEnv(EnvVar); !ok {
		_ = os.Setenv(EnvVar, "1")
	}
}
