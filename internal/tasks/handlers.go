package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/talentcove/company-switch/internal/assignment"
	"github.com/talentcove/company-switch/internal/credstore"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
)

// sweepWindow bounds how far back the drift sweep looks for failed runs.
const sweepWindow = 24 * time.Hour

type Handler struct {
	logger  *slog.Logger
	store   *rolestore.Client // unauthenticated base client
	creds   *credstore.Service
	cache   *selection.Cache
	journal *journal.Recorder
	queue   *asynq.Client
}

func NewHandler(logger *slog.Logger, store *rolestore.Client, creds *credstore.Service, cache *selection.Cache, recorder *journal.Recorder, queue *asynq.Client) *Handler {
	return &Handler{
		logger:  logger,
		store:   store,
		creds:   creds,
		cache:   cache,
		journal: recorder,
		queue:   queue,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDefaultRepair, h.HandleDefaultRepair)
	mux.HandleFunc(TypeDriftSweep, h.HandleDriftSweep)
}

// HandleDefaultRepair re-runs the full pipeline for one user with the service
// credential. Returning an error lets asynq retry with backoff, which is safe
// because each attempt starts from a fresh snapshot.
func (h *Handler) HandleDefaultRepair(ctx context.Context, t *asynq.Task) error {
	var payload DefaultRepairPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("starting default-company repair",
		"user_id", payload.UserID,
		"company_id", payload.CompanyID,
	)

	token, err := h.creds.ActiveToken(ctx)
	if err != nil {
		if errors.Is(err, credstore.ErrNoActiveCredential) {
			// Without a credential no retry can succeed; drop the task.
			h.logger.Error("repair skipped, no active store credential", "user_id", payload.UserID)
			return nil
		}
		return fmt.Errorf("loading store credential: %w", err)
	}

	coord := assignment.NewCoordinator(
		h.store.WithBearer(token),
		h.cache,
		h.journal,
		h.logger,
		assignment.TriggerRepair,
	)

	if _, err := coord.SetDefault(ctx, payload.UserID, payload.CompanyID, payload.Role); err != nil {
		return fmt.Errorf("repairing default for user %s: %w", payload.UserID, err)
	}

	h.logger.Info("completed default-company repair",
		"user_id", payload.UserID,
		"company_id", payload.CompanyID,
	)
	return nil
}

// HandleDriftSweep finds users whose most recent run failed and feeds each
// one back into the repair queue.
func (h *Handler) HandleDriftSweep(ctx context.Context, t *asynq.Task) error {
	failures, err := h.journal.LatestFailures(ctx, time.Now().Add(-sweepWindow))
	if err != nil {
		return fmt.Errorf("listing failed runs: %w", err)
	}

	enqueued := 0
	for _, run := range failures {
		task, err := NewDefaultRepairTask(DefaultRepairPayload{
			UserID:    run.UserID,
			CompanyID: run.CompanyID,
			Role:      run.Role,
		})
		if err != nil {
			h.logger.Error("failed to build repair task", "user_id", run.UserID, "error", err)
			continue
		}
		if _, err := h.queue.EnqueueContext(ctx, task, asynq.Queue("repair")); err != nil {
			h.logger.Error("failed to enqueue repair", "user_id", run.UserID, "error", err)
			continue
		}
		enqueued++
	}

	h.logger.Info("drift sweep complete",
		"failed_runs", len(failures),
		"repairs_enqueued", enqueued,
	)
	return nil
}
