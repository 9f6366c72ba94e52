// Package resolver locates a usable transformer binary for the run, walking
// a strict fallback chain: explicit override, PATH, prior build artifacts,
// then a fresh provisioned build.
package resolver

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/obfucc-project/obfucc-harness/internal/config"
	"github.com/obfucc-project/obfucc-harness/internal/harness"
	"github.com/obfucc-project/obfucc-harness/internal/procrunner"
)

// Provenance records which resolution tier produced the binary.
type Provenance string

const (
	ProvenanceExplicit   Provenance = "explicit"
	ProvenancePath       Provenance = "path"
	ProvenancePriorBuild Provenance = "prior-build"
	ProvenanceFresh      Provenance = "freshly-built"
)

// ToolBinary is the resolved transformer binary. Exactly one is resolved per
// invocation.
type ToolBinary struct {
	Path       string
	Provenance Provenance
}

// Provisioner triggers a fresh build. An empty path with a nil error means
// the build system is unavailable and the tier simply cannot serve.
type Provisioner interface {
	Provision(ctx context.Context) (string, error)
}

// Resolver finds the transformer binary.
type Resolver struct {
	cfg         *config.Config
	runner      *procrunner.Runner
	provisioner Provisioner

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

// New returns a Resolver backed by prov for the final tier.
func New(cfg *config.Config, runner *procrunner.Runner, prov Provisioner) *Resolver {
	return &Resolver{cfg: cfg, runner: runner, provisioner: prov, lookPath: exec.LookPath}
}

// Resolve returns the transformer binary, short-circuiting at the first
// satisfied tier.
//
// An explicit override is authoritative: it is used verbatim, without
// existence or freshness checks, and tiers 2-4 are never consulted.
func (r *Resolver) Resolve(ctx context.Context, override string) (ToolBinary, error) {
	if override != "" {
		return ToolBinary{Path: override, Provenance: ProvenanceExplicit}, nil
	}

	if found, err := r.lookPath(r.cfg.ObfuccBinary); err == nil {
		return ToolBinary{Path: found, Provenance: ProvenancePath}, nil
	}

	for _, candidate := range PriorBuildCandidates(r.cfg) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return ToolBinary{Path: candidate, Provenance: ProvenancePriorBuild}, nil
		}
	}

	produced, err := r.provisioner.Provision(ctx)
	if err != nil {
		return ToolBinary{}, err
	}
	if produced == "" {
		return ToolBinary{}, &harness.ConfigurationError{Tool: r.cfg.ObfuccBinary}
	}
	return ToolBinary{Path: produced, Provenance: ProvenanceFresh}, nil
}

// PriorBuildCandidates returns the ordered locations an earlier build may
// have left a binary in, first match wins.
func PriorBuildCandidates(cfg *config.Config) []string {
	name := cfg.ObfuccBinary + config.ExeSuffix()
	return []string{
		filepath.Join(cfg.BuildDir, name),
		filepath.Join(cfg.BuildDir, "Release", name),
		filepath.Join(cfg.BuildDir, "Debug", name),
	}
}

// ProbeStub invokes the binary's help output and reports whether it looks
// like the tiny test stub. The check is a substring match against the
// configured markers in unstructured help text; a failed help invocation is
// treated as "not a stub" so missing validators surface later as their own
// errors.
func (r *Resolver) ProbeStub(ctx context.Context, bin ToolBinary) bool {
	out, err := r.runner.Capture(ctx, "", bin.Path, "--help")
	if err != nil {
		return false
	}
	for _, marker := range r.cfg.StubMarkers {
		if strings.Contains(out, marker) {
			return true
		}
	}
	return false
}
