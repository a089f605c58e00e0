package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/talentcove/company-switch/internal/api/dto"
	"github.com/talentcove/company-switch/internal/api/middleware"
	"github.com/talentcove/company-switch/internal/journal"
	"gorm.io/gorm"
)

// RunHandler serves the coordinator run journal. Admins see every run,
// everyone else only their own.
type RunHandler struct {
	journal *journal.Recorder
}

func NewRunHandler(recorder *journal.Recorder) *RunHandler {
	return &RunHandler{journal: recorder}
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	userFilter := middleware.GetUserID(r.Context())
	if middleware.GetUserRole(r.Context()) == "admin" {
		userFilter = r.URL.Query().Get("user_id")
	}

	runs, total, err := h.journal.List(r.Context(), userFilter, pagination.Offset(), pagination.PerPage)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list runs"})
		return
	}

	totalPages := int(total) / pagination.PerPage
	if int(total)%pagination.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       runs,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Get handles GET /api/v1/runs/:id
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid run ID"})
		return
	}

	run, err := h.journal.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Run not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get run"})
		return
	}

	if middleware.GetUserRole(r.Context()) != "admin" && run.UserID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Run not found"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}
