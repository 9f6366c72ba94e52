// Package provision builds the tiny test obfucc binary with CMake when no
// usable binary exists, and normalizes the produced artifact to a canonical
// location under the build directory.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/obfucc-project/obfucc-harness/internal/config"
	"github.com/obfucc-project/obfucc-harness/internal/procrunner"
	"github.com/obfucc-project/obfucc-harness/internal/termio"
)

// BuildError reports a failed CMake configure or build step.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("build failed: %v", e.Err) }

func (e *BuildError) Unwrap() error { return e.Err }

// CMakeProvisioner configures and builds the test obfucc target out-of-source
// into the config's build directory.
type CMakeProvisioner struct {
	cfg     *config.Config
	runner  *procrunner.Runner
	printer *termio.Printer

	// lookPath is swapped in tests to simulate an absent cmake.
	lookPath func(string) (string, error)
	retry    Policy
}

// New returns a provisioner using the retry policy from cfg.
func New(cfg *config.Config, runner *procrunner.Runner, printer *termio.Printer) *CMakeProvisioner {
	return &CMakeProvisioner{
		cfg:      cfg,
		runner:   runner,
		printer:  printer,
		lookPath: exec.LookPath,
		retry: Policy{
			MaxAttempts: cfg.CopyRetry.MaxAttempts,
			Delay:       cfg.CopyRetry.Delay(),
		},
	}
}

// Provision builds the test binary and returns its canonical path.
//
// A missing cmake is not an error: the provisioner returns ("", nil) and the
// caller is expected to have found a binary through another tier. A build
// that completes without leaving any expected artifact is likewise reported
// as a warning, not a failure.
func (p *CMakeProvisioner) Provision(ctx context.Context) (string, error) {
	if _, err := p.lookPath("cmake"); err != nil {
		p.printer.Infof("cmake not found in PATH -- skipping build step (assuming obfucc binary already present).")
		return "", nil
	}

	buildDir := p.cfg.BuildDir
	p.printer.Infof("Configuring test obfucc in %s -> source %s", buildDir, p.cfg.BuildSourceDir)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return "", &BuildError{Err: err}
	}

	// Explicit -S/-B so older CMake versions never mistake the source dir
	// for a generator argument.
	if err := p.runner.Stream(ctx, "", "cmake", "-S", p.cfg.BuildSourceDir, "-B", buildDir); err != nil {
		return "", &BuildError{Err: err}
	}
	if err := p.runner.Stream(ctx, "", "cmake", "--build", buildDir, "--target", p.cfg.BuildTarget, "--config", "Release"); err != nil {
		return "", &BuildError{Err: err}
	}

	found := firstExisting(Candidates(p.cfg))
	if found == "" {
		p.printer.Warnf("expected obfucc binary not found after build. Check CMake output.")
		return "", nil
	}

	produced := p.normalize(found)
	p.printer.Infof("Built test obfucc at: %s", produced)
	return produced, nil
}

// Candidates returns the ordered artifact locations a CMake build may have
// produced, first match wins: Release before top-level before Debug, the
// canonical binary name before the target name, the platform suffix applied.
func Candidates(cfg *config.Config) []string {
	suffix := config.ExeSuffix()
	var out []string
	for _, name := range []string{cfg.ObfuccBinary, cfg.BuildTarget} {
		for _, sub := range []string{"Release", "", "Debug"} {
			out = append(out, filepath.Join(cfg.BuildDir, sub, name+suffix))
		}
	}
	return out
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// normalize copies found to the canonical top-level path, retrying transient
// permission failures (Windows file locks, AV scans). On exhaustion or any
// other copy error the original path is used instead; normalization is
// best-effort.
func (p *CMakeProvisioner) normalize(found string) string {
	dst := filepath.Join(p.cfg.BuildDir, p.cfg.ObfuccBinary+config.ExeSuffix())
	if sameFile(found, dst) {
		return found
	}

	p.printer.Infof("Copying %s -> %s", found, dst)
	policy := p.retry
	policy.OnAttempt = func(attempt int, err error) {
		p.printer.Infof("Copy attempt %d failed: %v", attempt, err)
	}

	err := policy.Run(
		func() error { return copyFile(found, dst) },
		func(err error) bool { return errors.Is(err, os.ErrPermission) },
	)
	if err != nil {
		p.printer.Warnf("giving up on copy; using original path %s", found)
		return found
	}
	return dst
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
