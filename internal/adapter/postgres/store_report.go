package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/CommandForge/internal/domain/report"
)

func (s *Store) AddCheckReport(ctx context.Context, r *report.CheckReport) error {
	issuesJSON, err := json.Marshal(r.Issues)
	if err != nil {
		return fmt.Errorf("marshal check issues: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO check_reports (id, command_id, path, has_issue, issues, overall_severity)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		r.ID, r.CommandID, r.Path, r.HasIssue, issuesJSON, r.OverallSeverity)

	if err := row.Scan(&r.CreatedAt); err != nil {
		return fmt.Errorf("add check report: %w", err)
	}
	return nil
}

func (s *Store) AddTestReport(ctx context.Context, r *report.TestReport) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO test_reports (id, command_id, path, test_file_path, generated_test_cases, single_test_run_command)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		r.ID, r.CommandID, r.Path, r.TestFilePath, r.AmountOfGeneratedTestCases, r.SingleTestRunCommand)

	if err := row.Scan(&r.CreatedAt); err != nil {
		return fmt.Errorf("add test report: %w", err)
	}
	return nil
}

func (s *Store) ListCheckReports(ctx context.Context, commandID string) ([]report.CheckReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, command_id, path, has_issue, issues, overall_severity, created_at
		 FROM check_reports WHERE command_id = $1 ORDER BY created_at ASC`, commandID)
	if err != nil {
		return nil, fmt.Errorf("list check reports: %w", err)
	}
	defer rows.Close()

	var reports []report.CheckReport
	for rows.Next() {
		var r report.CheckReport
		var issuesJSON []byte
		if err := rows.Scan(&r.ID, &r.CommandID, &r.Path, &r.HasIssue, &issuesJSON,
			&r.OverallSeverity, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(issuesJSON, &r.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal check issues: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Store) ListTestReports(ctx context.Context, commandID string) ([]report.TestReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, command_id, path, test_file_path, generated_test_cases, single_test_run_command, created_at
		 FROM test_reports WHERE command_id = $1 ORDER BY created_at ASC`, commandID)
	if err != nil {
		return nil, fmt.Errorf("list test reports: %w", err)
	}
	defer rows.Close()

	var reports []report.TestReport
	for rows.Next() {
		var r report.TestReport
		if err := rows.Scan(&r.ID, &r.CommandID, &r.Path, &r.TestFilePath,
			&r.AmountOfGeneratedTestCases, &r.SingleTestRunCommand, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Store) DeleteReports(ctx context.Context, commandID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM check_reports WHERE command_id = $1`, commandID); err != nil {
		return fmt.Errorf("delete check reports for command %s: %w", commandID, err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM test_reports WHERE command_id = $1`, commandID); err != nil {
		return fmt.Errorf("delete test reports for command %s: %w", commandID, err)
	}
	return nil
}
