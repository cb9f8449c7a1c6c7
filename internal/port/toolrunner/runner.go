// Package toolrunner defines the port for the code-modification tool.
// The tool is an opaque subprocess; the orchestrator only consumes its
// output lines, exit status, diff flag, and any emitted reports.
package toolrunner

import (
	"context"

	"github.com/Strob0t/CommandForge/internal/domain/report"
)

// Request describes one tool invocation against a prepared work tree.
type Request struct {
	WorkTree    string
	TargetPaths []string
	Options     []string
}

// Result is what a completed (or failed) tool run reports back.
type Result struct {
	ExitCode int
	// HasDiff is true when the run produced a working-tree diff.
	HasDiff      bool
	CheckReports []report.CheckReport
	TestReports  []report.TestReport
}

// Runner is the port interface for executing the tool.
type Runner interface {
	// Execute runs the tool to completion, streaming every output line
	// (ANSI bytes preserved verbatim) to onLine in the order emitted.
	// A non-zero exit status is returned as an error.
	Execute(ctx context.Context, req Request, onLine func(line string)) (*Result, error)
}
