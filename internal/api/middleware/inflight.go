package middleware

import (
	"net/http"
	"sync"
)

// SingleFlight rejects a request with 409 while another request by the same
// user is still in flight on the guarded route. The coordinator itself takes
// no lock; its contract requires callers to serialize their own triggers,
// and for callers of this API that caller is us. Clients outside this service
// (or a second deployment) can still race; that residual risk is documented,
// not handled.
func SingleFlight() func(http.Handler) http.Handler {
	var active sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, loaded := active.LoadOrStore(userID, struct{}{}); loaded {
				http.Error(w, "A default-company change is already in progress", http.StatusConflict)
				return
			}
			defer active.Delete(userID)

			next.ServeHTTP(w, r)
		})
	}
}
