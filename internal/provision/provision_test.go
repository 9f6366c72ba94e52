package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/obfucc-project/obfucc-harness/internal/config"
	"github.com/obfucc-project/obfucc-harness/internal/procrunner"
	"github.com/obfucc-project/obfucc-harness/internal/termio"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.BuildDir = filepath.Join(dir, "build")
	cfg.BuildSourceDir = filepath.Join(dir, "tests", "test_obfucc")
	cfg.CopyRetry.DelayMS = 1
	return cfg
}

func newTestProvisioner(cfg *config.Config) (*CMakeProvisioner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	printer := termio.New(out, true)
	p := New(cfg, procrunner.New(printer.Echo), printer)
	p.retry.Sleep = func(d time.Duration) {}
	return p, out
}

func TestProvision_NoCMakeReturnsNothing(t *testing.T) {
	cfg := testConfig(t)
	p, out := newTestProvisioner(cfg)
	p.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	produced, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("missing cmake must not be an error: %v", err)
	}
	if produced != "" {
		t.Errorf("expected no binary, got %q", produced)
	}
	if !bytes.Contains(out.Bytes(), []byte("cmake not found")) {
		t.Errorf("expected skip notice, got %q", out.String())
	}
	if _, err := os.Stat(cfg.BuildDir); !os.IsNotExist(err) {
		t.Error("build dir should not be created when cmake is absent")
	}
}

func TestCandidates_Order(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = "build"

	got := Candidates(cfg)
	suffix := config.ExeSuffix()
	want := []string{
		filepath.Join("build", "Release", "obfucc"+suffix),
		filepath.Join("build", "obfucc"+suffix),
		filepath.Join("build", "Debug", "obfucc"+suffix),
		filepath.Join("build", "Release", "obfucc_test"+suffix),
		filepath.Join("build", "obfucc_test"+suffix),
		filepath.Join("build", "Debug", "obfucc_test"+suffix),
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestProvision_BuildsAndNormalizes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}

	cfg := testConfig(t)
	p, _ := newTestProvisioner(cfg)

	// A fake cmake that drops the artifact where the Release configuration
	// of the real generator would.
	binDir := t.TempDir()
	script := `#!/bin/sh
if [ "$1" = "--build" ]; then
  mkdir -p "$2/Release"
  printf 'fake-obfucc' > "$2/Release/obfucc_test"
fi
exit 0
`
	if err := os.WriteFile(filepath.Join(binDir, "cmake"), []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake cmake: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	produced, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}

	want := filepath.Join(cfg.BuildDir, "obfucc"+config.ExeSuffix())
	if produced != want {
		t.Errorf("expected normalized path %s, got %s", want, produced)
	}
	data, err := os.ReadFile(produced)
	if err != nil {
		t.Fatalf("normalized binary missing: %v", err)
	}
	if string(data) != "fake-obfucc" {
		t.Errorf("unexpected binary content %q", data)
	}
}

func TestProvision_ConfigureFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}

	cfg := testConfig(t)
	p, _ := newTestProvisioner(cfg)

	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "cmake"), []byte("#!/bin/sh\nexit 1\n"), 0755); err != nil {
		t.Fatalf("failed to write fake cmake: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	_, err := p.Provision(context.Background())
	if err == nil {
		t.Fatal("expected build error")
	}
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Errorf("expected *BuildError, got %T", err)
	}
}

func TestProvision_NoArtifactAfterBuild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}

	cfg := testConfig(t)
	p, out := newTestProvisioner(cfg)

	binDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(binDir, "cmake"), []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("failed to write fake cmake: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	produced, err := p.Provision(context.Background())
	if err != nil {
		t.Fatalf("missing artifact must be a warning, not an error: %v", err)
	}
	if produced != "" {
		t.Errorf("expected no binary, got %q", produced)
	}
	if !bytes.Contains(out.Bytes(), []byte("not found after build")) {
		t.Errorf("expected warning, got %q", out.String())
	}
}

func TestNormalize_FallsBackOnCopyError(t *testing.T) {
	cfg := testConfig(t)
	p, out := newTestProvisioner(cfg)

	// The canonical destination is occupied by a directory, so every copy
	// attempt fails with a non-permission error and normalization falls
	// back to the found path.
	releaseDir := filepath.Join(cfg.BuildDir, "Release")
	if err := os.MkdirAll(releaseDir, 0755); err != nil {
		t.Fatalf("failed to create build tree: %v", err)
	}
	found := filepath.Join(releaseDir, "obfucc_test")
	if err := os.WriteFile(found, []byte("bin"), 0755); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	dst := filepath.Join(cfg.BuildDir, "obfucc"+config.ExeSuffix())
	if err := os.MkdirAll(dst, 0755); err != nil {
		t.Fatalf("failed to occupy destination: %v", err)
	}

	got := p.normalize(found)
	if got != found {
		t.Errorf("expected fallback to %s, got %s", found, got)
	}
	if !bytes.Contains(out.Bytes(), []byte("giving up on copy")) {
		t.Errorf("expected fallback warning, got %q", out.String())
	}
}

func TestNormalize_AlreadyCanonical(t *testing.T) {
	cfg := testConfig(t)
	p, _ := newTestProvisioner(cfg)

	if err := os.MkdirAll(cfg.BuildDir, 0755); err != nil {
		t.Fatalf("failed to create build dir: %v", err)
	}
	canonical := filepath.Join(cfg.BuildDir, "obfucc"+config.ExeSuffix())
	if err := os.WriteFile(canonical, []byte("bin"), 0755); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	if got := p.normalize(canonical); got != canonical {
		t.Errorf("expected canonical path unchanged, got %s", got)
	}
}
