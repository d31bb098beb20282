package testutil

import "testing"

func TestRequireIntegration_OptOut(t *testing.T) {
	t.Setenv(IntegrationEnv, "false")

	ran := false
	t.Run("inner", func(t *testing.T) {
		RequireIntegration(t)
		ran = true
	})
	if ran {
		t.Fatal("expected the test to be skipped")
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("DOCGATE_TESTUTIL_SET", "x")
	t.Setenv("DOCGATE_TESTUTIL_EMPTY", "")

	var reached []string
	for _, name := range []string{"DOCGATE_TESTUTIL_SET", "DOCGATE_TESTUTIL_EMPTY"} {
		t.Run(name, func(t *testing.T) {
			RequireEnv(t, name)
			reached = append(reached, name)
		})
	}
	if len(reached) != 1 || reached[0] != "DOCGATE_TESTUTIL_SET" {
		t.Fatalf("unexpected tests reached: %v", reached)
	}
}
