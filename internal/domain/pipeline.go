package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Pipeline struct {
	ID          string
	Name        string
	Color       string
	Transitions TransitionPolicy
	Stages      []Stage // ordered by OrderIndex when loaded with stages
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Stage struct {
	ID                  string
	PipelineID          string
	Name                string
	Color               string
	OrderIndex          int
	ProbabilityPercent  *int
	IsWon               bool
	IsLost              bool
	StagnationAlertDays *int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsTerminal reports whether the stage is flagged won or lost.
// Terminal flags are advisory: they never block moves out of the stage.
func (s *Stage) IsTerminal() bool {
	return s.IsWon || s.IsLost
}

// AllowsQuickAdd reports whether the board should offer inline creation in this column.
func (s *Stage) AllowsQuickAdd() bool {
	return !s.IsTerminal()
}

// StageByID returns the stage with the given id, or nil.
func (p *Pipeline) StageByID(id string) *Stage {
	for i := range p.Stages {
		if p.Stages[i].ID == id {
			return &p.Stages[i]
		}
	}
	return nil
}

// SortedStages returns a copy of Stages ordered by OrderIndex.
func (p *Pipeline) SortedStages() []Stage {
	out := make([]Stage, len(p.Stages))
	copy(out, p.Stages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}

// StageIndex returns the position of the stage in Stages, or -1.
func (p *Pipeline) StageIndex(id string) int {
	for i := range p.Stages {
		if p.Stages[i].ID == id {
			return i
		}
	}
	return -1
}

// InitialStage returns the stage with the lowest OrderIndex, or nil when the pipeline has none.
func (p *Pipeline) InitialStage() *Stage {
	var first *Stage
	for i := range p.Stages {
		if first == nil || p.Stages[i].OrderIndex < first.OrderIndex {
			first = &p.Stages[i]
		}
	}
	return first
}

// ValidateStageOrder checks that no two stages share an OrderIndex.
func (p *Pipeline) ValidateStageOrder() error {
	seen := make(map[int]string, len(p.Stages))
	for _, s := range p.Stages {
		if other, ok := seen[s.OrderIndex]; ok {
			return fmt.Errorf("stages %q and %q share order_index %d", other, s.Name, s.OrderIndex)
		}
		seen[s.OrderIndex] = s.Name
	}
	return nil
}

// IsVariant reports whether the pipeline's name matches the configured variant name.
func (p *Pipeline) IsVariant(variantName string) bool {
	return variantName != "" && strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(variantName))
}

// StagePair is one permitted (from, to) transition.
type StagePair struct {
	From string
	To   string
}

// TransitionPolicy makes the pipeline's transition guards explicit.
// The zero value permits any-to-any moves.
type TransitionPolicy struct {
	Mode    TransitionMode
	Allowed []StagePair
}

// Permits reports whether a move from -> to is allowed. Staying in place is always allowed.
func (t TransitionPolicy) Permits(from, to string) bool {
	if from == to || t.Mode == "" || t.Mode == TransitionsAny {
		return true
	}
	for _, p := range t.Allowed {
		if p.From == from && p.To == to {
			return true
		}
	}
	return false
}
