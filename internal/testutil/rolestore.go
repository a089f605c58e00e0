package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FakeAssociation mirrors the role store's wire shape, including the stringly
// default flag and the bare-date createdAt.
type FakeAssociation struct {
	ID             string `json:"id,omitempty"`
	UserID         string `json:"userId"`
	CompanyID      string `json:"companyId"`
	Role           string `json:"role"`
	DefaultCompany string `json:"defaultCompany"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// FakeRoleStore is an in-memory stand-in for the external role store. Every
// record is updated independently, just like the real thing, and individual
// calls can be made to fail so tests can leave the store mid-plan.
type FakeRoleStore struct {
	mu     sync.Mutex
	assocs map[string]FakeAssociation
	nextID int

	// Failure injection. Statuses of 0 mean the call succeeds. FailUpdateAt
	// fails the Nth update call (1-based) with FailUpdateStatus.
	FailListStatus   int
	FailCreateStatus int
	FailUpdateAt     int
	FailUpdateStatus int

	updateCalls int

	// LastAuthorization records the Authorization header of the most recent
	// request, for asserting token forwarding.
	LastAuthorization string

	server *httptest.Server
}

// NewFakeRoleStore starts an httptest server speaking the role store's API.
func NewFakeRoleStore() *FakeRoleStore {
	f := &FakeRoleStore{
		assocs:           make(map[string]FakeAssociation),
		FailUpdateStatus: http.StatusInternalServerError,
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the fake store's base URL.
func (f *FakeRoleStore) URL() string {
	return f.server.URL
}

// Close shuts down the server.
func (f *FakeRoleStore) Close() {
	f.server.Close()
}

// Seed inserts associations directly, assigning IDs where missing.
func (f *FakeRoleStore) Seed(assocs ...FakeAssociation) []FakeAssociation {
	f.mu.Lock()
	defer f.mu.Unlock()

	seeded := make([]FakeAssociation, 0, len(assocs))
	for _, a := range assocs {
		if a.ID == "" {
			f.nextID++
			a.ID = fmt.Sprintf("assoc-%d", f.nextID)
		}
		f.assocs[a.ID] = a
		seeded = append(seeded, a)
	}
	return seeded
}

// Associations returns the user's current records.
func (f *FakeRoleStore) Associations(userID string) []FakeAssociation {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []FakeAssociation
	for _, a := range f.assocs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// DefaultCount counts the user's records currently flagged as default.
func (f *FakeRoleStore) DefaultCount(userID string) int {
	count := 0
	for _, a := range f.Associations(userID) {
		if a.DefaultCompany == "true" {
			count++
		}
	}
	return count
}

// UpdateCalls returns how many updates the store has received.
func (f *FakeRoleStore) UpdateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateCalls
}

func (f *FakeRoleStore) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.LastAuthorization = r.Header.Get("Authorization")
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/user-company/user/"):
		f.handleList(w, strings.TrimPrefix(r.URL.Path, "/user-company/user/"))
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/user-company/"):
		f.handleUpdate(w, r, strings.TrimPrefix(r.URL.Path, "/user-company/"))
	case r.Method == http.MethodPost && r.URL.Path == "/user-company":
		f.handleCreate(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeRoleStore) handleList(w http.ResponseWriter, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailListStatus != 0 {
		http.Error(w, "injected failure", f.FailListStatus)
		return
	}

	out := []FakeAssociation{}
	for _, a := range f.assocs {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	writeFakeJSON(w, http.StatusOK, out)
}

func (f *FakeRoleStore) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updateCalls++
	if f.FailUpdateAt != 0 && f.updateCalls == f.FailUpdateAt {
		http.Error(w, "injected failure", f.FailUpdateStatus)
		return
	}

	if _, ok := f.assocs[id]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var a FakeAssociation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	a.ID = id
	f.assocs[id] = a
	writeFakeJSON(w, http.StatusOK, a)
}

func (f *FakeRoleStore) handleCreate(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreateStatus != 0 {
		http.Error(w, "injected failure", f.FailCreateStatus)
		return
	}

	var a FakeAssociation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f.nextID++
	a.ID = fmt.Sprintf("assoc-%d", f.nextID)
	f.assocs[a.ID] = a
	writeFakeJSON(w, http.StatusCreated, a)
}

func writeFakeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
