package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentcove/company-switch/internal/api/dto"
	"github.com/talentcove/company-switch/internal/api/middleware"
	"github.com/talentcove/company-switch/internal/assignment"
	"github.com/talentcove/company-switch/internal/auth"
	"github.com/talentcove/company-switch/internal/journal"
	"github.com/talentcove/company-switch/internal/testutil"
)

type runsFixture struct {
	router     *chi.Mux
	jwtService *auth.JWTService
	userRun    uuid.UUID
	otherRun   uuid.UUID
}

func setupRunsAPI(t *testing.T) *runsFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	recorder := journal.NewRecorder(db, testutil.NewTestLogger())
	ctx := context.Background()
	userRun := recorder.RunStarted(ctx, "user-1", "c1", "member", assignment.TriggerAPI)
	otherRun := recorder.RunStarted(ctx, "user-2", "c2", "member", assignment.TriggerAPI)

	handler := NewRunHandler(recorder)
	jwtService := testutil.CreateTestJWTService()

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(jwtService))
		r.Get("/runs", handler.List)
		r.Get("/runs/{id}", handler.Get)
	})

	return &runsFixture{
		router:     router,
		jwtService: jwtService,
		userRun:    userRun,
		otherRun:   otherRun,
	}
}

func (f *runsFixture) get(t *testing.T, path, userID, role string) *httptest.ResponseRecorder {
	t.Helper()
	token := testutil.GenerateTestToken(t, f.jwtService, userID, userID+"@example.com", role)
	req := testutil.AuthenticatedRequest(t, http.MethodGet, path, nil, token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListRunsScopedToCaller(t *testing.T) {
	f := setupRunsAPI(t)

	rec := f.get(t, "/runs", "user-1", "member")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.PaginatedResponse
	testutil.ParseJSONResponse(t, rec, &resp)
	assert.EqualValues(t, 1, resp.Total)
}

func TestListRunsAdminSeesAll(t *testing.T) {
	f := setupRunsAPI(t)

	rec := f.get(t, "/runs", "admin-1", "admin")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.PaginatedResponse
	testutil.ParseJSONResponse(t, rec, &resp)
	assert.EqualValues(t, 2, resp.Total)

	rec = f.get(t, "/runs?user_id=user-2", "admin-1", "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.ParseJSONResponse(t, rec, &resp)
	assert.EqualValues(t, 1, resp.Total)
}

func TestGetRunHidesOtherUsers(t *testing.T) {
	f := setupRunsAPI(t)

	rec := f.get(t, "/runs/"+f.userRun.String(), "user-1", "member")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.get(t, "/runs/"+f.otherRun.String(), "user-1", "member")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.get(t, "/runs/"+f.otherRun.String(), "admin-1", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRunInvalidID(t *testing.T) {
	f := setupRunsAPI(t)

	rec := f.get(t, "/runs/not-a-uuid", "user-1", "member")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get(t, "/runs/"+uuid.NewString(), "user-1", "member")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
