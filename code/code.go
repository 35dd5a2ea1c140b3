// Package code provides sandboxed execution of generated code snippets and
// test files. Snippets are written to a temporary file and run through a
// configured interpreter with a hard timeout, so runaway generations cannot
// stall an agent run.
package code

import "context"

// Result captures the outcome of a snippet execution.
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// TestResult captures the outcome of a test runner invocation with the
// parsed pass/fail summary.
type TestResult struct {
	Passed    bool   `json:"passed"`
	PassCount int    `json:"pass_count"`
	FailCount int    `json:"fail_count"`
	Summary   string `json:"summary"`
	Output    string `json:"output"`
	ExitCode  int    `json:"exit_code"`
}

// Executor runs code snippets and test files.
//
// A non-zero exit code is not an error: the Result carries it so callers
// (and models) can inspect stderr. Errors are reserved for infrastructure
// failures such as being unable to create the temp file.
type Executor interface {
	// Execute runs the given snippet and returns its captured output.
	Execute(ctx context.Context, snippet string) (*Result, error)

	// RunTests runs the configured test runner against a test file and
	// parses the pass/fail summary from its output.
	RunTests(ctx context.Context, path string) (*TestResult, error)
}
