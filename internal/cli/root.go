package cli

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logPath    string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "obfucc-harness",
	Short: "Test harness for the obfucc LLVM obfuscator",
	Long: `obfucc-harness drives smoke and regression checks against the obfucc
obfuscator: it locates (or builds) the obfucc binary, runs it against an LLVM
IR test case, validates the output with llvm-as and FileCheck, and maps each
failure mode to a distinct exit code.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to harness YAML config (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to JSONL run log (default: no run log)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func Execute() error {
	return rootCmd.Execute()
}
