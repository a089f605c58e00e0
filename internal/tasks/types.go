package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeDefaultRepair = "assignment:repair"
	TypeDriftSweep    = "assignment:drift_sweep"
)

// DefaultRepairPayload re-runs the default-company pipeline for one user.
// Safe to retry: every run re-plans from a fresh snapshot.
type DefaultRepairPayload struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

func NewDefaultRepairTask(payload DefaultRepairPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDefaultRepair, data), nil
}

// DriftSweepPayload is empty - the sweep inspects the whole journal.
type DriftSweepPayload struct{}

func NewDriftSweepTask() *asynq.Task {
	return asynq.NewTask(TypeDriftSweep, nil)
}
