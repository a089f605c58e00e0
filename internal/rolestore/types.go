package rolestore

import (
	"fmt"
	"time"
)

// dateLayout is the bare calendar date the store uses for createdAt.
const dateLayout = "2006-01-02"

// Association is a user↔company role record held by the role store. The store
// assigns IDs; a record without one does not exist yet. UserID and CompanyID
// are immutable once created, and the default flag is the only field this
// service ever changes.
type Association struct {
	ID        string
	UserID    string
	CompanyID string
	Role      string
	Default   bool
	CreatedAt time.Time
}

// Company is returned by the store's company listing. Only adjacent surfaces
// use it; the coordinator never does.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// associationWire mirrors the store's JSON shape. The default flag travels as
// the literal strings "true"/"false" and createdAt as a bare date, so the
// translation is kept here and nowhere else.
type associationWire struct {
	ID             string `json:"id,omitempty"`
	UserID         string `json:"userId"`
	CompanyID      string `json:"companyId"`
	Role           string `json:"role"`
	DefaultCompany string `json:"defaultCompany"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

func toWire(a Association) associationWire {
	w := associationWire{
		ID:             a.ID,
		UserID:         a.UserID,
		CompanyID:      a.CompanyID,
		Role:           a.Role,
		DefaultCompany: "false",
	}
	if a.Default {
		w.DefaultCompany = "true"
	}
	if !a.CreatedAt.IsZero() {
		w.CreatedAt = a.CreatedAt.UTC().Format(dateLayout)
	}
	return w
}

func fromWire(w associationWire) (Association, error) {
	a := Association{
		ID:        w.ID,
		UserID:    w.UserID,
		CompanyID: w.CompanyID,
		Role:      w.Role,
		Default:   w.DefaultCompany == "true",
	}
	if w.CreatedAt != "" {
		created, err := time.Parse(dateLayout, w.CreatedAt)
		if err != nil {
			return Association{}, fmt.Errorf("parsing createdAt %q: %w", w.CreatedAt, err)
		}
		a.CreatedAt = created
	}
	return a, nil
}
