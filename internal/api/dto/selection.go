package dto

// SetDefaultRequest asks the coordinator to make a company the caller's
// default.
type SetDefaultRequest struct {
	CompanyID string `json:"company_id"`
}

func (r SetDefaultRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.CompanyID == "" {
		errors["company_id"] = "Company ID is required"
	}
	return errors
}

// SelectionResponse is the current-company payload.
type SelectionResponse struct {
	CompanyID string `json:"company_id"`
}

// RunFailureResponse maps a failed coordinator run onto the API. The caller
// gets enough to decide whether and how to retry: the phase that died, the
// partial progress, and whether the user is currently left without a default.
type RunFailureResponse struct {
	Error              string `json:"error"`
	Phase              string `json:"phase"`
	CompletedDemotions int    `json:"completed_demotions"`
	PlannedDemotions   int    `json:"planned_demotions"`
	NoDefaultSet       bool   `json:"no_default_set"`
	Retryable          bool   `json:"retryable"`
}
