package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/talentcove/company-switch/internal/assignment"
	"github.com/talentcove/company-switch/internal/database/models"
	"gorm.io/gorm"
)

// Recorder persists the lifecycle of coordinator runs. A journaling failure
// is logged and swallowed. The journal observes the saga, it never gates it.
type Recorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRecorder(db *gorm.DB, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// RunStarted opens a journal entry and returns its id, or uuid.Nil when the
// write failed.
func (r *Recorder) RunStarted(ctx context.Context, userID, companyID, role, trigger string) uuid.UUID {
	run := &models.AssignmentRun{
		UserID:    userID,
		CompanyID: companyID,
		Role:      role,
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		r.logger.Warn("failed to journal run start", "user_id", userID, "error", err)
		return uuid.Nil
	}
	return run.ID
}

// RunCommitted closes a journal entry as successful.
func (r *Recorder) RunCommitted(ctx context.Context, runID uuid.UUID, createdAssociation bool, demotions int) {
	if runID == uuid.Nil {
		return
	}
	updates := map[string]interface{}{
		"status":              models.RunStatusCommitted,
		"created_association": createdAssociation,
		"planned_demotions":   demotions,
		"completed_demotions": demotions,
		"finished_at":         time.Now().Unix(),
	}
	if err := r.db.WithContext(ctx).Model(&models.AssignmentRun{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		r.logger.Warn("failed to journal run commit", "run_id", runID, "error", err)
	}
}

// RunFailed closes a journal entry with the step error's full detail.
func (r *Recorder) RunFailed(ctx context.Context, runID uuid.UUID, stepErr *assignment.StepError) {
	if runID == uuid.Nil {
		return
	}
	updates := map[string]interface{}{
		"status":              models.RunStatusFailed,
		"failed_phase":        string(stepErr.Phase),
		"status_code":         stepErr.StatusCode,
		"error":               stepErr.Error(),
		"no_default_set":      stepErr.NoDefaultSet,
		"planned_demotions":   stepErr.PlannedDemotions,
		"completed_demotions": stepErr.CompletedDemotions,
		"finished_at":         time.Now().Unix(),
	}
	if err := r.db.WithContext(ctx).Model(&models.AssignmentRun{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		r.logger.Warn("failed to journal run failure", "run_id", runID, "error", err)
	}
}

// List returns runs newest first, paginated.
func (r *Recorder) List(ctx context.Context, userID string, offset, limit int) ([]models.AssignmentRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AssignmentRun{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.AssignmentRun
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// Get returns a single run by id.
func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*models.AssignmentRun, error) {
	var run models.AssignmentRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestFailures returns, for each user whose most recent run since the given
// time failed, that failed run. The drift sweep feeds these back into the
// pipeline; a user whose latest run committed needs no repair no matter how
// many earlier runs failed.
func (r *Recorder) LatestFailures(ctx context.Context, since time.Time) ([]models.AssignmentRun, error) {
	var runs []models.AssignmentRun
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at > ?", models.RunStatusFailed, since).
		Where("NOT EXISTS (SELECT 1 FROM assignment_runs newer WHERE newer.user_id = assignment_runs.user_id AND newer.created_at > assignment_runs.created_at)").
		Order("created_at ASC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
