// Package toolcli runs the code-modification tool as a subprocess and
// adapts its observable effects to the toolrunner port. The tool's
// stdout and stderr are streamed line by line with ANSI escapes intact;
// structured reports are picked up afterwards from the tool's build
// directory inside the work tree (build/<tool>/check and build/<tool>/test).
package toolcli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/report"
	"github.com/Strob0t/CommandForge/internal/port/toolrunner"
)

// maxLineSize bounds a single streamed output line. Tool output can
// carry long diff hunks on one line.
const maxLineSize = 1024 * 1024

// Runner executes the configured tool binary inside a work tree.
type Runner struct {
	tool string

	// execCommand is swappable for testing.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a Runner invoking the given tool binary, e.g. "batchai".
func NewRunner(tool string) *Runner {
	return &Runner{
		tool:        tool,
		execCommand: exec.CommandContext,
	}
}

// Execute runs the tool to completion in req.WorkTree, streaming every
// output line to onLine in emission order. Stdout and stderr share one
// pipe so interleaving matches what a terminal would show.
func (r *Runner) Execute(ctx context.Context, req toolrunner.Request, onLine func(line string)) (*toolrunner.Result, error) {
	args := append(append([]string{}, req.Options...), req.TargetPaths...)

	cmd := r.execCommand(ctx, r.tool, args...)
	cmd.Dir = req.WorkTree

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			onLine(scanner.Text())
		}
	}()

	runErr := cmd.Run()
	pw.Close()
	wg.Wait()

	result := &toolrunner.Result{}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("toolcli: run %s: %w (%w)", r.tool, runErr, domain.ErrExternal)
	}

	hasDiff, err := r.hasDiff(ctx, req.WorkTree)
	if err != nil {
		return nil, err
	}
	result.HasDiff = hasDiff

	if err := r.collectReports(req.WorkTree, result); err != nil {
		return nil, err
	}

	if result.ExitCode != 0 {
		return result, fmt.Errorf("toolcli: %s exited with status %d: %w", r.tool, result.ExitCode, domain.ErrExternal)
	}
	return result, nil
}

// hasDiff reports whether the work tree holds uncommitted changes.
func (r *Runner) hasDiff(ctx context.Context, workTree string) (bool, error) {
	cmd := r.execCommand(ctx, "git", "status", "--porcelain")
	cmd.Dir = workTree

	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("toolcli: detect diff: %w", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// collectReports loads the JSON reports the tool wrote under its build
// directory. A missing directory means the run emitted no reports.
func (r *Runner) collectReports(workTree string, result *toolrunner.Result) error {
	checkDir := filepath.Join(workTree, "build", r.tool, "check")
	if err := eachReportFile(checkDir, func(data []byte, path string) error {
		var rep report.CheckReport
		if err := json.Unmarshal(data, &rep); err != nil {
			return fmt.Errorf("toolcli: parse check report %s: %w", path, err)
		}
		result.CheckReports = append(result.CheckReports, rep)
		return nil
	}); err != nil {
		return err
	}

	testDir := filepath.Join(workTree, "build", r.tool, "test")
	return eachReportFile(testDir, func(data []byte, path string) error {
		var rep report.TestReport
		if err := json.Unmarshal(data, &rep); err != nil {
			return fmt.Errorf("toolcli: parse test report %s: %w", path, err)
		}
		result.TestReports = append(result.TestReports, rep)
		return nil
	})
}

func eachReportFile(dir string, fn func(data []byte, path string) error) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("toolcli: read report dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("toolcli: read report %s: %w", path, err)
		}
		if err := fn(data, path); err != nil {
			return err
		}
	}
	return nil
}
