package journal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentcove/company-switch/internal/assignment"
	"github.com/talentcove/company-switch/internal/database/models"
	"github.com/talentcove/company-switch/internal/testutil"
	"gorm.io/gorm"
)

func setupRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return NewRecorder(db, testutil.NewTestLogger()), db
}

func TestRunStartedCreatesEntry(t *testing.T) {
	recorder, db := setupRecorder(t)
	ctx := context.Background()

	runID := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)
	require.NotEqual(t, uuid.Nil, runID)

	var run models.AssignmentRun
	require.NoError(t, db.First(&run, "id = ?", runID).Error)
	assert.Equal(t, "user-1", run.UserID)
	assert.Equal(t, "c1", run.CompanyID)
	assert.Equal(t, "api", run.Trigger)
	assert.Equal(t, models.RunStatusRunning, run.Status)
}

func TestRunCommittedClosesEntry(t *testing.T) {
	recorder, db := setupRecorder(t)
	ctx := context.Background()

	runID := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)
	recorder.RunCommitted(ctx, runID, true, 2)

	var run models.AssignmentRun
	require.NoError(t, db.First(&run, "id = ?", runID).Error)
	assert.Equal(t, models.RunStatusCommitted, run.Status)
	assert.True(t, run.CreatedAssociation)
	assert.Equal(t, 2, run.CompletedDemotions)
	assert.NotZero(t, run.FinishedAt)
}

func TestRunFailedRecordsStepDetail(t *testing.T) {
	recorder, db := setupRecorder(t)
	ctx := context.Background()

	runID := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerRepair)
	recorder.RunFailed(ctx, runID, &assignment.StepError{
		Phase:              assignment.PhasePromoting,
		CompletedDemotions: 1,
		PlannedDemotions:   1,
		StatusCode:         502,
		NoDefaultSet:       true,
		Err:                assert.AnError,
	})

	var run models.AssignmentRun
	require.NoError(t, db.First(&run, "id = ?", runID).Error)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, "promoting", run.FailedPhase)
	assert.Equal(t, 502, run.StatusCode)
	assert.True(t, run.NoDefaultSet)
	assert.Equal(t, 1, run.CompletedDemotions)
	assert.NotEmpty(t, run.Error)
}

func TestRunUpdatesIgnoreNilID(t *testing.T) {
	recorder, db := setupRecorder(t)
	ctx := context.Background()

	recorder.RunCommitted(ctx, uuid.Nil, false, 0)
	recorder.RunFailed(ctx, uuid.Nil, &assignment.StepError{Phase: assignment.PhaseFetching, Err: assert.AnError})

	var count int64
	require.NoError(t, db.Model(&models.AssignmentRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListFiltersAndPaginates(t *testing.T) {
	recorder, _ := setupRecorder(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)
	}
	recorder.RunStarted(ctx, "user-2", "c2", "member", assignment.TriggerAPI)

	runs, total, err := recorder.List(ctx, "user-1", 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, runs, 2)

	runs, total, err = recorder.List(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, runs, 4)
}

func TestGetReturnsRun(t *testing.T) {
	recorder, _ := setupRecorder(t)
	ctx := context.Background()

	runID := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)

	run, err := recorder.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", run.UserID)

	_, err = recorder.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLatestFailuresSkipsRecoveredUsers(t *testing.T) {
	recorder, db := setupRecorder(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	// user-1: a failure and nothing after it.
	failedID := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)
	recorder.RunFailed(ctx, failedID, &assignment.StepError{Phase: assignment.PhasePromoting, Err: assert.AnError})
	setCreatedAt(t, db, failedID, base)

	// user-2: a failure followed by a committed run.
	oldFailID := recorder.RunStarted(ctx, "user-2", "c2", "member", assignment.TriggerAPI)
	recorder.RunFailed(ctx, oldFailID, &assignment.StepError{Phase: assignment.PhaseDemoting, Err: assert.AnError})
	setCreatedAt(t, db, oldFailID, base.Add(time.Minute))

	recoveredID := recorder.RunStarted(ctx, "user-2", "c2", "member", assignment.TriggerAPI)
	recorder.RunCommitted(ctx, recoveredID, false, 1)
	setCreatedAt(t, db, recoveredID, base.Add(2*time.Minute))

	failures, err := recorder.LatestFailures(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "user-1", failures[0].UserID)
}

func TestLatestFailuresHonorsWindow(t *testing.T) {
	recorder, db := setupRecorder(t)
	ctx := context.Background()

	staleID := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)
	recorder.RunFailed(ctx, staleID, &assignment.StepError{Phase: assignment.PhaseDemoting, Err: assert.AnError})
	setCreatedAt(t, db, staleID, time.Now().Add(-48*time.Hour))

	failures, err := recorder.LatestFailures(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func setCreatedAt(t *testing.T, db *gorm.DB, id uuid.UUID, ts time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.AssignmentRun{}).Where("id = ?", id).Update("created_at", ts).Error)
}
