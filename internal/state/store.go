// Package state records run history in a local SQLite ledger: one run per
// warehouse target and one result per test case, with the compiled SQL.
package state

import "time"

// RunStatus is the outcome of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one pipeline execution against a warehouse target.
type Run struct {
	ID          string
	Target      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// CaseStatus is the outcome of one test case.
type CaseStatus string

// Case statuses.
const (
	CaseStatusPassed   CaseStatus = "passed"
	CaseStatusMismatch CaseStatus = "mismatch"
	CaseStatusError    CaseStatus = "error"
)

// CaseResult is the ledger record of one test case on one target.
type CaseResult struct {
	ID          string
	RunID       string
	Case        string
	ArtifactKey string
	Dialect     string
	SQL         string
	Status      CaseStatus
	Mismatches  int
	Error       string
	RecordedAt  time.Time
}
