// Package report defines the structured reports a tool run may emit.
// Reports are attached to the command id, immutable once recorded, and
// discarded only by restart or removal of the command.
package report

import "time"

// Severity grades a check issue.
type Severity string

const (
	SeverityTrivial  Severity = "trivial"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// CheckIssue is a single finding inside a check report.
type CheckIssue struct {
	ShortDescription     string   `json:"short_description"`
	DetailedExplaination string   `json:"detailed_explaination"`
	Suggestion           string   `json:"suggestion"`
	IssueLineBegin       int      `json:"issue_line_begin"`
	IssueLineEnd         int      `json:"issue_line_end"`
	IssueReferenceUrls   []string `json:"issue_reference_urls,omitempty"`
	Severity             Severity `json:"severity"`
	SeverityReason       string   `json:"severity_reason"`
}

// CheckReport is the tool's review verdict for one source file.
type CheckReport struct {
	ID              string       `json:"id"`
	CommandID       string       `json:"command_id"`
	Path            string       `json:"path"`
	HasIssue        bool         `json:"has_issue"`
	Issues          []CheckIssue `json:"issues,omitempty"`
	OverallSeverity Severity     `json:"overall_severity,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// TestReport describes generated tests for one source file.
type TestReport struct {
	ID                         string    `json:"id"`
	CommandID                  string    `json:"command_id"`
	Path                       string    `json:"path"`
	TestFilePath               string    `json:"test_file_path"`
	AmountOfGeneratedTestCases int       `json:"amount_of_generated_test_cases"`
	SingleTestRunCommand       string    `json:"single_test_run_command"`
	CreatedAt                  time.Time `json:"created_at"`
}
