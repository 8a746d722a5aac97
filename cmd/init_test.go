package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestInitWritesConfig(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if err := runRoot(t, "--home", base, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}

	cfgPath := filepath.Join(base, ".w3b2d", "config.toml")
	raw, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if !strings.Contains(string(raw), "[chain]") {
		t.Fatal("default config missing chain section")
	}
}

func TestInitRefusesOverwriteWithoutForce(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	if err := runRoot(t, "--home", base, "init"); err != nil {
		t.Fatalf("first init: %v", err)
	}

	if err := runRoot(t, "--home", base, "init"); err == nil {
		t.Fatal("second init must refuse without --force")
	}
	if err := runRoot(t, "--home", base, "init", "--force"); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestEmptyHomeRejected(t *testing.T) {
	t.Parallel()

	if err := runRoot(t, "--home", "  ", "init"); err == nil {
		t.Fatal("blank --home must be rejected")
	}
}

func TestStartWithoutConfigFails(t *testing.T) {
	t.Parallel()

	err := runRoot(t, "--home", t.TempDir(), "start")
	if err == nil || !strings.Contains(err.Error(), "w3b2d init") {
		t.Fatalf("expected init hint, got %v", err)
	}
}
