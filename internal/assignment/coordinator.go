package assignment

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
)

// Trigger labels who started a run.
const (
	TriggerAPI    = "api"
	TriggerRepair = "repair"
)

// Store is the slice of the role store the coordinator needs. It exposes only
// independent per-record calls; there is no batch write and no transaction,
// which is the whole reason the coordinator exists.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]rolestore.Association, error)
	Update(ctx context.Context, a rolestore.Association) (rolestore.Association, error)
	Create(ctx context.Context, a rolestore.Association) (rolestore.Association, error)
}

// Recorder journals run outcomes. Journaling never blocks the saga: a
// recorder that fails to write returns uuid.Nil and the run carries on.
type Recorder interface {
	RunStarted(ctx context.Context, userID, companyID, role, trigger string) uuid.UUID
	RunCommitted(ctx context.Context, runID uuid.UUID, createdAssociation bool, demotions int)
	RunFailed(ctx context.Context, runID uuid.UUID, stepErr *StepError)
}

// Coordinator drives the default-company pipeline: fetch the user's
// associations, plan, demote every stray default one call at a time, then
// promote or create the target, and only then mirror the choice into the
// selection cache.
//
// One coordinator run issues its store calls strictly sequentially. Across
// runs there is no built-in mutual exclusion: callers must not start a second
// run for the same user while one is in flight, and concurrent callers from
// outside this service remain a documented residual risk.
type Coordinator struct {
	store   Store
	cache   *selection.Cache
	journal Recorder
	logger  *slog.Logger
	trigger string
	now     func() time.Time
}

// NewCoordinator wires a coordinator. cache and journal may be nil; the
// pipeline then runs without mirroring or journaling.
func NewCoordinator(store Store, cache *selection.Cache, journal Recorder, logger *slog.Logger, trigger string) *Coordinator {
	if trigger == "" {
		trigger = TriggerAPI
	}
	return &Coordinator{
		store:   store,
		cache:   cache,
		journal: journal,
		logger:  logger,
		trigger: trigger,
		now:     time.Now,
	}
}

// SetDefault makes companyID the user's single default association and
// returns it on success. On failure the returned error is always a *StepError
// describing the phase reached and the demotions already committed; no retry
// happens here, but re-invoking SetDefault is always safe because every run
// re-plans from a fresh snapshot.
func (c *Coordinator) SetDefault(ctx context.Context, userID, companyID, role string) (string, error) {
	var runID uuid.UUID
	if c.journal != nil {
		runID = c.journal.RunStarted(ctx, userID, companyID, role, c.trigger)
	}

	assocs, err := c.store.ListByUser(ctx, userID)
	if err != nil {
		return "", c.fail(ctx, runID, userID, &StepError{
			Phase:      PhaseFetching,
			StatusCode: rolestore.StatusOf(err),
			Err:        err,
		})
	}

	plan := BuildPlan(assocs, userID, companyID, role, c.now())

	// Demotions never touch the target, so if it already holds the default
	// flag a failed promotion later cannot have removed the last default.
	targetWasDefault := !plan.CreateTarget && hasDefault(assocs, companyID)

	for i, demotion := range plan.Demotions {
		if _, err := c.store.Update(ctx, demotion); err != nil {
			return "", c.fail(ctx, runID, userID, &StepError{
				Phase:              PhaseDemoting,
				CompletedDemotions: i,
				PlannedDemotions:   len(plan.Demotions),
				StatusCode:         rolestore.StatusOf(err),
				Err:                err,
			})
		}
		c.logger.Debug("demoted association",
			"user_id", userID,
			"company_id", demotion.CompanyID,
			"step", i+1,
			"of", len(plan.Demotions),
		)
	}

	if plan.CreateTarget {
		_, err = c.store.Create(ctx, plan.Target)
	} else {
		_, err = c.store.Update(ctx, plan.Target)
	}
	if err != nil {
		return "", c.fail(ctx, runID, userID, &StepError{
			Phase:              PhasePromoting,
			CompletedDemotions: len(plan.Demotions),
			PlannedDemotions:   len(plan.Demotions),
			StatusCode:         rolestore.StatusOf(err),
			NoDefaultSet:       !targetWasDefault,
			Err:                err,
		})
	}

	if c.cache != nil {
		// The mirror is best-effort: the store now satisfies the invariant
		// even if the cache write is lost.
		if cacheErr := c.cache.Set(ctx, userID, companyID); cacheErr != nil {
			c.logger.Warn("failed to update selection cache",
				"user_id", userID,
				"company_id", companyID,
				"error", cacheErr,
			)
		}
	}

	if c.journal != nil {
		c.journal.RunCommitted(ctx, runID, plan.CreateTarget, len(plan.Demotions))
	}

	c.logger.Info("default company committed",
		"user_id", userID,
		"company_id", companyID,
		"demotions", len(plan.Demotions),
		"created", plan.CreateTarget,
		"trigger", c.trigger,
	)

	return companyID, nil
}

func (c *Coordinator) fail(ctx context.Context, runID uuid.UUID, userID string, stepErr *StepError) error {
	if c.journal != nil {
		c.journal.RunFailed(ctx, runID, stepErr)
	}
	c.logger.Error("default company run failed",
		"user_id", userID,
		"phase", stepErr.Phase,
		"completed_demotions", stepErr.CompletedDemotions,
		"planned_demotions", stepErr.PlannedDemotions,
		"status", stepErr.StatusCode,
		"no_default_set", stepErr.NoDefaultSet,
		"error", stepErr.Err,
	)
	return stepErr
}

func hasDefault(assocs []rolestore.Association, companyID string) bool {
	for _, a := range assocs {
		if a.CompanyID == companyID && a.Default {
			return true
		}
	}
	return false
}
