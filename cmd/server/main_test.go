package main

import (
	"testing"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version must not be empty")
	}
}

func TestRun_FailsWithoutConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	if err := run(); err == nil {
		t.Fatal("run() should fail fast when required configuration is missing")
	}
}
