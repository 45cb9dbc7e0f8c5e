package domain

import "time"

// StageTransition is one entry of an opportunity's append-only stage history.
// FromStageID is empty for the entry written at creation.
type StageTransition struct {
	ID             string
	OpportunityID  string
	FromStageID    string
	ToStageID      string
	EnteredFromAt  time.Time
	TransitionedAt time.Time
}

// TimeInStages sums the time spent in each stage over the opportunity's lifetime,
// including the open interval in the current stage up to now.
func TimeInStages(transitions []StageTransition, current *Opportunity, now time.Time) map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, t := range transitions {
		if t.FromStageID == "" || t.EnteredFromAt.IsZero() {
			continue
		}
		if d := t.TransitionedAt.Sub(t.EnteredFromAt); d > 0 {
			out[t.FromStageID] += d
		}
	}
	if current != nil && !current.EnteredStageAt.IsZero() {
		if d := now.Sub(current.EnteredStageAt); d > 0 {
			out[current.StageID] += d
		}
	}
	return out
}
