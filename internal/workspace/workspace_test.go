package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_CreatesDirectory(t *testing.T) {
	ws, err := New()
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	defer ws.Release()

	info, err := os.Stat(ws.Dir())
	if err != nil {
		t.Fatalf("workspace dir missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("workspace path is not a directory")
	}
	if !strings.Contains(filepath.Base(ws.Dir()), "obfucc-test-") {
		t.Errorf("unexpected workspace name: %s", ws.Dir())
	}
}

func TestOutputFor_DerivesFromCaseStem(t *testing.T) {
	ws, err := New()
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	defer ws.Release()

	out := ws.OutputFor("tests/cases/string_encrypt.ll")
	if filepath.Base(out) != "string_encrypt.out.ll" {
		t.Errorf("expected string_encrypt.out.ll, got %s", filepath.Base(out))
	}
	if filepath.Dir(out) != ws.Dir() {
		t.Errorf("output not inside workspace: %s", out)
	}
}

func TestRelease_RemovesDirectory(t *testing.T) {
	ws, err := New()
	if err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	dir := ws.Dir()
	if err := os.WriteFile(ws.Path("scratch.bc"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write scratch file: %v", err)
	}

	ws.Release()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected workspace removed, stat err = %v", err)
	}

	// A second release is a no-op.
	ws.Release()
}
