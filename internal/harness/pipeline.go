// Package harness runs the validation pipeline against a resolved transformer
// binary: transformer execution, structural validation with llvm-as, pattern
// assertions with FileCheck, and a final help-probe smoke check.
package harness

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/obfucc-project/obfucc-harness/internal/config"
	"github.com/obfucc-project/obfucc-harness/internal/metrics"
	"github.com/obfucc-project/obfucc-harness/internal/procrunner"
	"github.com/obfucc-project/obfucc-harness/internal/runlog"
	"github.com/obfucc-project/obfucc-harness/internal/termio"
)

// Stage names one pipeline step.
type Stage string

const (
	StageTransformer Stage = "transformer-execution"
	StageStructural  Stage = "structural-check"
	StageAssertion   Stage = "assertion-check"
	StageHelpProbe   Stage = "help-probe"
	StageMetrics     Stage = "metrics"
)

// Verdict is the outcome of one attempted stage.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictSkipped Verdict = "skipped"
)

// Outcome records one attempted stage. The pipeline short-circuits at the
// first failure, so the sequence ends either with a fail or with the metrics
// stage.
type Outcome struct {
	Stage      Stage
	Verdict    Verdict
	Diagnostic string
}

// TestCase is the immutable input to one pipeline run.
type TestCase struct {
	InputPath  string
	CheckPath  string // empty disables the assertion stage
	OutputPath string
	ScratchDir string // workspace dir for intermediate artifacts

	StringEncrypt      bool
	ControlFlowFlatten bool

	// Mode is an informational tag ("smoke", "regression", "custom")
	// recorded in the run log; it does not change pipeline behavior.
	Mode string
}

// Pipeline validates transformer output. Skip flags may come from the caller
// or from stub detection; either way a skipped validator records a skipped
// outcome rather than silently vanishing.
type Pipeline struct {
	cfg     *config.Config
	runner  *procrunner.Runner
	printer *termio.Printer
	log     *runlog.Logger // optional

	SkipStructural bool
	SkipAssertion  bool

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
}

// NewPipeline wires a pipeline; log may be nil.
func NewPipeline(cfg *config.Config, runner *procrunner.Runner, printer *termio.Printer, log *runlog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, runner: runner, printer: printer, log: log, lookPath: exec.LookPath}
}

// Preflight verifies the external validators this run will actually use are
// present, before any subprocess runs. checkSupplied reports whether an
// assertion check file was given.
func (p *Pipeline) Preflight(checkSupplied bool) error {
	if !p.SkipStructural {
		if _, err := p.lookPath(p.cfg.LLVMAs[0]); err != nil {
			return &ConfigurationError{Tool: p.cfg.LLVMAs[0]}
		}
	}
	if checkSupplied && !p.SkipAssertion {
		if _, err := p.lookPath(p.cfg.FileCheck[0]); err != nil {
			return &ConfigurationError{Tool: p.cfg.FileCheck[0]}
		}
	}
	return nil
}

// Run executes the pipeline stages in order against binPath and returns the
// attempted outcomes plus the process exit code. The first failing stage
// determines the code; later stages are not attempted.
func (p *Pipeline) Run(ctx context.Context, binPath string, tc TestCase) ([]Outcome, int) {
	var outcomes []Outcome
	record := func(stage Stage, verdict Verdict, diag string, argv []string, start time.Time) {
		outcomes = append(outcomes, Outcome{Stage: stage, Verdict: verdict, Diagnostic: diag})
		p.logEvent(runlog.Event{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Mode:       tc.Mode,
			Stage:      string(stage),
			Verdict:    string(verdict),
			Diagnostic: diag,
			Argv:       argv,
			DurationMS: time.Since(start).Milliseconds(),
		})
	}

	// Transformer execution.
	argv := []string{binPath, "--input", tc.InputPath, "--output", tc.OutputPath}
	if tc.StringEncrypt {
		argv = append(argv, "--enable-string-encrypt")
	}
	if tc.ControlFlowFlatten {
		argv = append(argv, "--enable-cff")
	}
	p.printer.Infof("Running obfuscator: mode=%s case=%s", tc.Mode, tc.InputPath)
	start := time.Now()
	if err := p.runner.Stream(ctx, "", argv...); err != nil {
		p.printer.Fail("obfucc run failed")
		record(StageTransformer, VerdictFail, err.Error(), argv, start)
		return outcomes, ExitTransformerFailed
	}
	p.printer.Infof("Obfuscation completed in %.2fs, output -> %s", time.Since(start).Seconds(), tc.OutputPath)
	record(StageTransformer, VerdictPass, "", argv, start)

	if code := p.runStructural(ctx, tc, record); code != ExitOK {
		return outcomes, code
	}
	if code := p.runAssertion(ctx, tc, record); code != ExitOK {
		return outcomes, code
	}

	// Help-probe smoke check.
	start = time.Now()
	probe := []string{binPath, "--help"}
	if err := p.runner.Stream(ctx, "", probe...); err != nil {
		p.printer.Fail("obfucc --help failed")
		record(StageHelpProbe, VerdictFail, err.Error(), probe, start)
		return outcomes, ExitHelpProbeFailed
	}
	p.printer.Pass("obfucc --help executed with exit code 0")
	record(StageHelpProbe, VerdictPass, "", probe, start)

	p.emitMetrics(tc, record)
	return outcomes, ExitOK
}

type recordFunc func(stage Stage, verdict Verdict, diag string, argv []string, start time.Time)

func (p *Pipeline) runStructural(ctx context.Context, tc TestCase, record recordFunc) int {
	if p.SkipStructural {
		p.printer.Skip("llvm-as validation skipped")
		record(StageStructural, VerdictSkipped, "", nil, time.Now())
		return ExitOK
	}

	bc := filepath.Join(tc.ScratchDir, "out.bc")
	argv := append(append([]string{}, p.cfg.LLVMAs...), tc.OutputPath, "-o", bc)
	start := time.Now()
	out, err := p.runner.Capture(ctx, "", argv...)
	if err != nil {
		p.printer.Infof("%s", out)
		p.printer.Fail("llvm-as failed to parse output IR")
		record(StageStructural, VerdictFail, err.Error(), argv, start)
		return ExitStructuralFailed
	}
	p.printer.Pass("output IR parsed by llvm-as")
	record(StageStructural, VerdictPass, "", argv, start)
	return ExitOK
}

func (p *Pipeline) runAssertion(ctx context.Context, tc TestCase, record recordFunc) int {
	if tc.CheckPath == "" {
		return ExitOK
	}
	if p.SkipAssertion {
		p.printer.Skip("FileCheck validation skipped")
		record(StageAssertion, VerdictSkipped, "", nil, time.Now())
		return ExitOK
	}

	argv := append(append([]string{}, p.cfg.FileCheck...), tc.CheckPath, "--input-file", tc.OutputPath)
	// String encryption emits extra CHECK-CRYPT lines; selecting the
	// extended prefix set here is part of the feature-flag contract.
	if tc.StringEncrypt {
		argv = append(argv, "-check-prefixes=CHECK,CHECK-CRYPT")
	}
	start := time.Now()
	out, err := p.runner.Capture(ctx, "", argv...)
	if err != nil {
		p.printer.Infof("%s", out)
		p.printer.Fail("FileCheck assertions failed")
		record(StageAssertion, VerdictFail, err.Error(), argv, start)
		return ExitAssertionFailed
	}
	p.printer.Infof("%s", out)
	p.printer.Pass("FileCheck assertions passed")
	record(StageAssertion, VerdictPass, "", argv, start)
	return ExitOK
}

// emitMetrics reports size and entropy of the produced artifact. Purely
// informational; a metrics error is only a warning.
func (p *Pipeline) emitMetrics(tc TestCase, record recordFunc) {
	start := time.Now()
	report, err := metrics.Measure(tc.OutputPath)
	if err != nil {
		p.printer.Warnf("could not measure output artifact: %v", err)
		return
	}
	diag := fmt.Sprintf("size=%d entropy=%.2f", report.SizeBytes, report.Entropy)
	p.printer.Infof("Output IR size: %d bytes", report.SizeBytes)
	p.printer.Infof("Output entropy: %.2f bits/byte", report.Entropy)
	record(StageMetrics, VerdictPass, diag, nil, start)
}

// LogSummary writes the final run-summary event with the process exit code.
func (p *Pipeline) LogSummary(mode string, code int) {
	p.logEvent(runlog.Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Mode:      mode,
		Stage:     "run",
		Verdict:   verdictForCode(code),
		ExitCode:  &code,
	})
}

func verdictForCode(code int) string {
	if code == ExitOK {
		return string(VerdictPass)
	}
	return string(VerdictFail)
}

func (p *Pipeline) logEvent(ev runlog.Event) {
	if p.log == nil {
		return
	}
	if err := p.log.Log(ev); err != nil {
		p.printer.Warnf("failed to write run log: %v", err)
	}
}
