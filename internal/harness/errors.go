package harness

import "fmt"

// Exit codes returned by the harness process. Each failing stage owns a
// distinct code so CI can tell failure modes apart without parsing output.
const (
	ExitOK                = 0
	ExitMissingTool       = 2
	ExitCaseNotFound      = 3
	ExitBuildNothing      = 4
	ExitTransformerFailed = 5
	ExitStructuralFailed  = 6
	ExitAssertionFailed   = 7
	ExitHelpProbeFailed   = 8
)

// ConfigurationError reports a required external tool missing from the
// environment.
type ConfigurationError struct {
	Tool string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required tool %q not found in PATH", e.Tool)
}

// ResourceNotFoundError reports a missing input artifact, such as the test
// case file.
type ResourceNotFoundError struct {
	Path string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("test case not found: %s", e.Path)
}
