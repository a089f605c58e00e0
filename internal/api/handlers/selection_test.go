package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentcove/company-switch/internal/api/dto"
	"github.com/talentcove/company-switch/internal/api/middleware"
	"github.com/talentcove/company-switch/internal/database/models"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/rolestore"
	"github.com/talentcove/company-switch/internal/selection"
	"github.com/talentcove/company-switch/internal/testutil"
	"gorm.io/gorm"
)

type selectionFixture struct {
	router    *chi.Mux
	roleStore *testutil.FakeRoleStore
	db        *gorm.DB
	token     string
}

func setupSelectionAPI(t *testing.T) *selectionFixture {
	t.Helper()

	fake := testutil.NewFakeRoleStore()
	t.Cleanup(fake.Close)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	logger := testutil.NewTestLogger()
	client := rolestore.NewClient(fake.URL(), "", 5*time.Second, logger)
	cache := selection.NewCache(selection.NewMemoryStore())
	recorder := journal.NewRecorder(db, logger)

	handler := NewSelectionHandler(client, cache, recorder, nil, false, logger)

	jwtService := testutil.CreateTestJWTService()
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtService))
		r.Route("/default-company", func(r chi.Router) {
			r.With(middleware.SingleFlight()).Post("/", handler.SetDefault)
			r.Get("/", handler.Current)
			r.Delete("/", handler.Clear)
		})
	})

	return &selectionFixture{
		router:    router,
		roleStore: fake,
		db:        db,
		token:     testutil.GenerateTestToken(t, jwtService, "user-1", "user@example.com", "member"),
	}
}

func (f *selectionFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.AuthenticatedRequest(t, method, path, strings.NewReader(body), f.token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSetDefaultRequiresAuth(t *testing.T) {
	f := setupSelectionAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/default-company", strings.NewReader(`{"company_id":"c1"}`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetDefaultPromotesAndMirrors(t *testing.T) {
	f := setupSelectionAPI(t)
	f.roleStore.Seed(
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c1", Role: "member", DefaultCompany: "true"},
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c2", Role: "member", DefaultCompany: "false"},
	)

	rec := f.do(t, http.MethodPost, "/default-company", `{"company_id":"c2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.SelectionResponse
	testutil.ParseJSONResponse(t, rec, &resp)
	assert.Equal(t, "c2", resp.CompanyID)

	assert.Equal(t, 1, f.roleStore.DefaultCount("user-1"))
	for _, a := range f.roleStore.Associations("user-1") {
		if a.CompanyID == "c2" {
			assert.Equal(t, "true", a.DefaultCompany)
		}
	}

	// The caller's own token was forwarded to the role store.
	assert.Equal(t, "Bearer "+f.token, f.roleStore.LastAuthorization)

	// The mirror serves the committed selection.
	rec = f.do(t, http.MethodGet, "/default-company", "")
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.ParseJSONResponse(t, rec, &resp)
	assert.Equal(t, "c2", resp.CompanyID)

	// The run was journaled as committed.
	var run models.AssignmentRun
	require.NoError(t, f.db.First(&run, "user_id = ?", "user-1").Error)
	assert.Equal(t, models.RunStatusCommitted, run.Status)
}

func TestSetDefaultValidatesBody(t *testing.T) {
	f := setupSelectionAPI(t)

	rec := f.do(t, http.MethodPost, "/default-company", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/default-company", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetDefaultPromotionFailureReportsDegradedState(t *testing.T) {
	f := setupSelectionAPI(t)
	f.roleStore.Seed(
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c1", Role: "member", DefaultCompany: "true"},
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c2", Role: "member", DefaultCompany: "false"},
	)
	// Update 1 demotes c1, update 2 promotes c2 and fails.
	f.roleStore.FailUpdateAt = 2

	rec := f.do(t, http.MethodPost, "/default-company", `{"company_id":"c2"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp dto.RunFailureResponse
	testutil.ParseJSONResponse(t, rec, &resp)
	assert.Equal(t, "promoting", resp.Phase)
	assert.True(t, resp.NoDefaultSet)
	assert.True(t, resp.Retryable)
	assert.Equal(t, 1, resp.CompletedDemotions)

	// Zero defaults, never two.
	assert.Equal(t, 0, f.roleStore.DefaultCount("user-1"))

	// The mirror was not advanced past the failed run.
	rec = f.do(t, http.MethodGet, "/default-company", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetDefaultConflictMapsTo409(t *testing.T) {
	f := setupSelectionAPI(t)
	f.roleStore.Seed(
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c1", Role: "member", DefaultCompany: "true"},
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c2", Role: "member", DefaultCompany: "false"},
	)
	f.roleStore.FailUpdateAt = 1
	f.roleStore.FailUpdateStatus = http.StatusNotFound

	rec := f.do(t, http.MethodPost, "/default-company", `{"company_id":"c2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCurrentWithoutSelection(t *testing.T) {
	f := setupSelectionAPI(t)

	rec := f.do(t, http.MethodGet, "/default-company", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearSelection(t *testing.T) {
	f := setupSelectionAPI(t)
	f.roleStore.Seed(
		testutil.FakeAssociation{UserID: "user-1", CompanyID: "c1", Role: "member", DefaultCompany: "false"},
	)

	rec := f.do(t, http.MethodPost, "/default-company", `{"company_id":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/default-company", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/default-company", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
