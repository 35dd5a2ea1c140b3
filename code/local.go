package code

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/coderlang-ai/coderlang/logging"
)

var (
	passedRe = regexp.MustCompile(`(\d+) passed`)
	failedRe = regexp.MustCompile(`(\d+) failed`)
)

// LocalExecutorOptions configures a LocalExecutor instance.
type LocalExecutorOptions struct {
	// Interpreter invoked with the temp file path, e.g. "python3".
	Interpreter string

	// FileSuffix for the temp file, e.g. ".py".
	FileSuffix string

	// Timeout for a single snippet execution.
	Timeout time.Duration

	// TestRunner command invoked with the test file path appended,
	// e.g. ["pytest", "-q", "--tb=short"].
	TestRunner []string

	// TestTimeout for a single test runner invocation.
	TestTimeout time.Duration

	Logger logging.Logger
}

// LocalExecutor runs snippets on the host via a subprocess. The snippet is
// written to a temp file, executed with the configured interpreter under a
// hard timeout, and the temp file is removed afterwards.
type LocalExecutor struct {
	interpreter string
	fileSuffix  string
	timeout     time.Duration
	testRunner  []string
	testTimeout time.Duration
	logger      logging.Logger
}

// NewLocalExecutor creates a LocalExecutor with python defaults.
func NewLocalExecutor(optFns ...func(o *LocalExecutorOptions)) *LocalExecutor {
	opts := LocalExecutorOptions{
		Interpreter: "python3",
		FileSuffix:  ".py",
		Timeout:     10 * time.Second,
		TestRunner:  []string{"pytest", "-q", "--tb=short"},
		TestTimeout: 15 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &LocalExecutor{
		interpreter: opts.Interpreter,
		fileSuffix:  opts.FileSuffix,
		timeout:     opts.Timeout,
		testRunner:  opts.TestRunner,
		testTimeout: opts.TestTimeout,
		logger:      opts.Logger,
	}
}

// Execute writes the snippet to a temp file and runs it under the timeout.
// Timeouts are reported through the Result (exit code 1, stderr message)
// rather than as errors, so agents can react to them like any other failure.
func (e *LocalExecutor) Execute(ctx context.Context, snippet string) (*Result, error) {
	tmp, err := os.CreateTemp("", "snippet-*"+e.fileSuffix)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(snippet); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	e.logger.Debug("code.execute.start", "interpreter", e.interpreter, "bytes", len(snippet))

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.interpreter, path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	dur := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		e.logger.Warn("code.execute.timeout", "timeout", e.timeout.String())
		return &Result{
			Stderr:   fmt.Sprintf("Error: code execution timed out after %s.", e.timeout),
			ExitCode: 1,
		}, nil
	}

	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run %s: %w", e.interpreter, runErr)
		}
	}

	e.logger.Info("code.execute.finished", "exit_code", result.ExitCode, "duration_ms", dur.Milliseconds())
	return result, nil
}

// RunTests executes the test runner against path and parses the
// "N passed" / "N failed" summary from the combined output.
func (e *LocalExecutor) RunTests(ctx context.Context, path string) (*TestResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("test file %s: %w", path, err)
	}
	if len(e.testRunner) == 0 {
		return nil, fmt.Errorf("no test runner configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, e.testTimeout)
	defer cancel()

	args := append(append([]string{}, e.testRunner[1:]...), path)
	var combined bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.testRunner[0], args...)
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		e.logger.Warn("code.tests.timeout", "timeout", e.testTimeout.String())
		return &TestResult{Summary: "test execution timed out", ExitCode: 1}, nil
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run %s: %w", e.testRunner[0], runErr)
		}
	}

	output := combined.String()
	result := &TestResult{
		Passed:    exitCode == 0,
		PassCount: extractCount(passedRe, output),
		FailCount: extractCount(failedRe, output),
		Output:    output,
		ExitCode:  exitCode,
	}
	result.Summary = fmt.Sprintf("Passed: %d, Failed: %d", result.PassCount, result.FailCount)

	e.logger.Info("code.tests.finished", "passed", result.PassCount, "failed", result.FailCount, "exit_code", exitCode)
	return result, nil
}

func extractCount(re *regexp.Regexp, output string) int {
	m := re.FindStringSubmatch(output)
	if len(m) != 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
