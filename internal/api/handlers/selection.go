package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/talentcove/company-switch/internal/api/dto"
	"github.com/talentcove/company-switch/internal/api/middleware"
	"github.com/talentcove/company-switch/internal/assignment"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
	"github.com/talentcove/company-switch/internal/tasks"
)

// SelectionHandler exposes the default-company pipeline and the current
// selection mirror.
type SelectionHandler struct {
	store      *rolestore.Client
	cache      *selection.Cache
	journal    *journal.Recorder
	queue      *asynq.Client
	autoRepair bool
	logger     *slog.Logger
}

func NewSelectionHandler(store *rolestore.Client, cache *selection.Cache, recorder *journal.Recorder, queue *asynq.Client, autoRepair bool, logger *slog.Logger) *SelectionHandler {
	return &SelectionHandler{
		store:      store,
		cache:      cache,
		journal:    recorder,
		queue:      queue,
		autoRepair: autoRepair,
		logger:     logger,
	}
}

// SetDefault handles POST /api/v1/default-company. The run executes with the
// caller's own bearer token forwarded to the role store, so the store sees
// the same identity it would from a first-party client.
func (h *SelectionHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())
	token := middleware.GetBearerToken(r.Context())

	var req dto.SetDefaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	coord := assignment.NewCoordinator(
		h.store.WithBearer(token),
		h.cache,
		h.journal,
		h.logger,
		assignment.TriggerAPI,
	)

	companyID, err := coord.SetDefault(r.Context(), userID, req.CompanyID, role)
	if err != nil {
		h.writeRunFailure(w, r, userID, req.CompanyID, role, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SelectionResponse{CompanyID: companyID})
}

// Current handles GET /api/v1/default-company.
func (h *SelectionHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	companyID, err := h.cache.Get(r.Context(), userID)
	if errors.Is(err, selection.ErrNotSet) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No default company set"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to read selection"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SelectionResponse{CompanyID: companyID})
}

// Clear handles DELETE /api/v1/default-company, the logout hook.
func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.cache.Clear(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to clear selection"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Selection cleared"})
}

func (h *SelectionHandler) writeRunFailure(w http.ResponseWriter, r *http.Request, userID, companyID, role string, err error) {
	var stepErr *assignment.StepError
	if !errors.As(err, &stepErr) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Assignment failed"})
		return
	}

	// A failed run is always retryable as a whole: the next run re-plans
	// from a fresh snapshot. Optionally hand it to the repair queue now.
	if h.autoRepair && h.queue != nil && stepErr.Phase != assignment.PhaseFetching {
		task, taskErr := tasks.NewDefaultRepairTask(tasks.DefaultRepairPayload{
			UserID:    userID,
			CompanyID: companyID,
			Role:      role,
		})
		if taskErr == nil {
			if _, taskErr = h.queue.EnqueueContext(r.Context(), task, asynq.Queue("repair")); taskErr == nil {
				h.logger.Info("enqueued repair", "user_id", userID, "company_id", companyID)
			}
		}
		if taskErr != nil {
			h.logger.Warn("failed to enqueue repair", "user_id", userID, "error", taskErr)
		}
	}

	status := http.StatusBadGateway
	if stepErr.Conflict() {
		status = http.StatusConflict
	}

	writeJSON(w, status, dto.RunFailureResponse{
		Error:              stepErr.Error(),
		Phase:              string(stepErr.Phase),
		CompletedDemotions: stepErr.CompletedDemotions,
		PlannedDemotions:   stepErr.PlannedDemotions,
		NoDefaultSet:       stepErr.NoDefaultSet,
		Retryable:          true,
	})
}
