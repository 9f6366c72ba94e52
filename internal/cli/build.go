package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/obfucc-project/obfucc-harness/internal/config"
	"github.com/obfucc-project/obfucc-harness/internal/procrunner"
	"github.com/obfucc-project/obfucc-harness/internal/provision"
	"github.com/obfucc-project/obfucc-harness/internal/termio"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Configure and build the tiny test obfucc binary",
	Long: `Build the test obfucc target out-of-source with CMake and normalize
the produced binary to the top of the build directory. Equivalent to
"run --build-only".

Exit codes: 0 built, 4 build left no binary, 5 build failed.`,
	RunE: buildCommand,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func buildCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	printer := termio.New(os.Stdout, noColor)
	runner := procrunner.New(printer.Echo)
	prov := provision.New(cfg, runner, printer)

	os.Exit(buildOnlyExit(cmd.Context(), prov, printer))
	return nil
}
