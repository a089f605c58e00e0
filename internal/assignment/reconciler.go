package assignment

import (
	"time"

	"github.com/talentcove/company-switch/internal/rolestore"
)

// Plan is the ordered set of writes that restores the single-default
// invariant for one user: first every demotion, then exactly one promotion or
// creation. Demotions are independent of each other, but the promotion must
// never run before all of them have committed. A crash mid-plan may leave
// zero defaults, never two.
type Plan struct {
	// Demotions carry the full record with the default flag already flipped
	// off; the store only accepts whole-record updates.
	Demotions []rolestore.Association

	// Target is the association to end up as the sole default. When
	// CreateTarget is set the record does not exist yet and must be POSTed;
	// otherwise it is PUT, even when it is already the default (a no-op
	// re-affirmation is cheaper than special-casing it).
	Target       rolestore.Association
	CreateTarget bool
}

// TotalSteps counts the writes the plan will issue.
func (p Plan) TotalSteps() int {
	return len(p.Demotions) + 1
}

// BuildPlan computes the minimal writes needed so that targetCompanyID becomes
// the user's only default association. Pure: no clock, no network, no store
// access beyond the snapshot passed in.
//
// Any association flagged default that is not the target gets demoted, which
// also self-heals snapshots corrupted with several defaults. A create is
// emitted only when no association for the (user, company) pair exists; the
// new record copies the caller's current global role and stamps now as its
// creation date.
func BuildPlan(assocs []rolestore.Association, userID, targetCompanyID, role string, now time.Time) Plan {
	var plan Plan

	targetIdx := -1
	for i, a := range assocs {
		if a.CompanyID == targetCompanyID {
			targetIdx = i
			break
		}
	}

	for i, a := range assocs {
		if i == targetIdx || !a.Default {
			continue
		}
		demoted := a
		demoted.Default = false
		plan.Demotions = append(plan.Demotions, demoted)
	}

	if targetIdx >= 0 {
		target := assocs[targetIdx]
		target.Default = true
		plan.Target = target
		return plan
	}

	plan.CreateTarget = true
	plan.Target = rolestore.Association{
		UserID:    userID,
		CompanyID: targetCompanyID,
		Role:      role,
		Default:   true,
		CreatedAt: now,
	}
	return plan
}
