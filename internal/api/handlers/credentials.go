package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/talentcove/company-switch/internal/api/dto"
	"github.com/talentcove/company-switch/internal/credstore"
	"gorm.io/gorm"
)

// CredentialHandler manages role store service credentials (admin only).
type CredentialHandler struct {
	creds *credstore.Service
}

func NewCredentialHandler(creds *credstore.Service) *CredentialHandler {
	return &CredentialHandler{creds: creds}
}

type CreateCredentialRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (r CreateCredentialRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Token == "" {
		errors["token"] = "Token is required"
	}
	return errors
}

// List handles GET /api/v1/store-credentials
func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.creds.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list credentials"})
		return
	}
	writeJSON(w, http.StatusOK, creds)
}

// Create handles POST /api/v1/store-credentials
func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	cred, err := h.creds.Create(r.Context(), req.Name, req.Token)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create credential"})
		return
	}

	cred.EncryptedToken = nil
	writeJSON(w, http.StatusCreated, cred)
}

// Delete handles DELETE /api/v1/store-credentials/:id
func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	credID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid credential ID"})
		return
	}

	if err := h.creds.Delete(r.Context(), credID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Credential not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete credential"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Credential deleted"})
}
