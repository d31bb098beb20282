// Package testutil gates tests that need real backends.
package testutil

import (
	"os"
	"strconv"
	"testing"
)

// IntegrationEnv opts integration tests in or out explicitly.
const IntegrationEnv = "INTEGRATION_TESTS"

// RequireIntegration skips t in -short mode, when IntegrationEnv is set to a
// false value, and on CI unless IntegrationEnv opts in.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	raw, set := os.LookupEnv(IntegrationEnv)
	if !set {
		if os.Getenv("CI") != "" {
			t.Skipf("integration test skipped on CI (set %s=1 to run)", IntegrationEnv)
		}
		return
	}
	if on, err := strconv.ParseBool(raw); err != nil || !on {
		t.Skipf("integration test disabled by %s=%q", IntegrationEnv, raw)
	}
}

// RequireEnv skips t unless every named variable is non-empty.
func RequireEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if os.Getenv(name) == "" {
			t.Skipf("%s is not set", name)
		}
	}
}
