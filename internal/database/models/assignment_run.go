package models

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCommitted RunStatus = "committed"
	RunStatusFailed    RunStatus = "failed"
)

// AssignmentRun records one pass of the default-company pipeline: who ran it,
// what it targeted, how far it got and how it ended. The original client-side
// orchestration had no durable log; the journal is what makes partial
// failures inspectable and repairable after the fact.
type AssignmentRun struct {
	Base
	UserID    string    `gorm:"index;not null" json:"user_id"`
	CompanyID string    `gorm:"not null" json:"company_id"`
	Role      string    `json:"role"`
	Trigger   string    `gorm:"default:'api'" json:"trigger"` // api, repair
	Status    RunStatus `gorm:"index;default:'running'" json:"status"`

	// Failure detail, empty on committed runs.
	FailedPhase string `json:"failed_phase,omitempty"`
	StatusCode  int    `json:"status_code,omitempty"`
	Error       string `json:"error,omitempty"`

	// NoDefaultSet marks the degraded state where every previous default was
	// demoted but the new one never got promoted.
	NoDefaultSet bool `json:"no_default_set"`

	PlannedDemotions   int   `json:"planned_demotions"`
	CompletedDemotions int   `json:"completed_demotions"`
	CreatedAssociation bool  `json:"created_association"`
	FinishedAt         int64 `json:"finished_at,omitempty"`
}

func (AssignmentRun) TableName() string {
	return "assignment_runs"
}
