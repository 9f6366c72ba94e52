package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

const (
	DefaultObfuccBinary   = "obfucc"
	DefaultBuildDir       = "build"
	DefaultBuildSourceDir = "tests/test_obfucc"
	DefaultBuildTarget    = "obfucc_test"
)

// Config holds every tool name, search path and policy knob the harness uses.
// It is constructed once per invocation and passed explicitly to the resolver,
// provisioner and pipeline; nothing reads tool names from package globals.
type Config struct {
	// ObfuccBinary is the logical name of the transformer binary, used for
	// the PATH lookup and as the canonical artifact name under BuildDir.
	ObfuccBinary string `yaml:"obfucc_binary"`

	// BuildDir is the out-of-source scratch directory the provisioner
	// configures CMake into, and the prior-build directory the resolver
	// scans for earlier artifacts.
	BuildDir       string `yaml:"build_dir"`
	BuildSourceDir string `yaml:"build_source_dir"`
	BuildTarget    string `yaml:"build_target"`

	// StubMarkers are substrings of `obfucc --help` output that identify the
	// tiny test stub. Substring matching on free text is a compatibility
	// shim until the binary reports structured capability flags.
	StubMarkers []string `yaml:"stub_markers"`

	CopyRetry RetryConfig `yaml:"copy_retry"`

	// LLVMAsCommand and FileCheckCommand override the validator invocations.
	// They are shell strings ("llvm-as", "/opt/llvm/bin/FileCheck -v", ...)
	// split into argv at load time.
	LLVMAsCommand    string `yaml:"llvm_as_command"`
	FileCheckCommand string `yaml:"filecheck_command"`

	// Parsed argv forms of the two commands above.
	LLVMAs    []string `yaml:"-"`
	FileCheck []string `yaml:"-"`
}

// RetryConfig shapes the provisioner's copy-retry state machine.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMS     int `yaml:"delay_ms"`
}

// Delay returns the fixed per-step delay; attempt N backs off N×Delay.
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.DelayMS) * time.Millisecond
}

// Default returns the built-in configuration matching the stock obfucc
// test layout.
func Default() *Config {
	return &Config{
		ObfuccBinary:     DefaultObfuccBinary,
		BuildDir:         DefaultBuildDir,
		BuildSourceDir:   DefaultBuildSourceDir,
		BuildTarget:      DefaultBuildTarget,
		StubMarkers:      []string{"stub", "obfucc_test"},
		CopyRetry:        RetryConfig{MaxAttempts: 5, DelayMS: 500},
		LLVMAsCommand:    "llvm-as",
		FileCheckCommand: "FileCheck",
		LLVMAs:           []string{"llvm-as"},
		FileCheck:        []string{"FileCheck"},
	}
}

// Load reads the harness YAML at path, overlaying it on the defaults.
// An empty path or a missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.ObfuccBinary == "" {
		cfg.ObfuccBinary = DefaultObfuccBinary
	}
	if cfg.BuildDir == "" {
		cfg.BuildDir = DefaultBuildDir
	}
	if cfg.BuildSourceDir == "" {
		cfg.BuildSourceDir = DefaultBuildSourceDir
	}
	if cfg.BuildTarget == "" {
		cfg.BuildTarget = DefaultBuildTarget
	}
	if len(cfg.StubMarkers) == 0 {
		cfg.StubMarkers = []string{"stub", "obfucc_test"}
	}
	if cfg.CopyRetry.MaxAttempts <= 0 {
		cfg.CopyRetry.MaxAttempts = 5
	}
	if cfg.CopyRetry.DelayMS <= 0 {
		cfg.CopyRetry.DelayMS = 500
	}

	if cfg.LLVMAs, err = splitCommand(cfg.LLVMAsCommand, "llvm-as"); err != nil {
		return nil, fmt.Errorf("llvm_as_command: %w", err)
	}
	if cfg.FileCheck, err = splitCommand(cfg.FileCheckCommand, "FileCheck"); err != nil {
		return nil, fmt.Errorf("filecheck_command: %w", err)
	}

	return cfg, nil
}

// splitCommand parses a user-supplied command override into argv with shell
// field splitting, so quoted paths and baked-in flags survive intact.
func splitCommand(src, fallback string) ([]string, error) {
	if src == "" {
		return []string{fallback}, nil
	}
	fields, err := shell.Fields(src, nil)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return []string{fallback}, nil
	}
	return fields, nil
}

// ExeSuffix is the platform executable suffix appended to build artifacts.
func ExeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
