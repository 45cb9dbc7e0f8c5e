package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrSameColumn is returned by BeginMove when the card already sits in the
// destination column.
var ErrSameColumn = errors.New("card already in destination column")

// Drop describes a finished drag gesture. An empty DestStageID means the card
// was released outside every column.
type Drop struct {
	OpportunityID string
	SourceStageID string
	DestStageID   string
	SourceIndex   int
	DestIndex     int
}

type Outcome int

const (
	// OutcomeIgnored: nothing changed and nothing was sent.
	OutcomeIgnored Outcome = iota
	// OutcomeReordered: same column, new position. Local only.
	OutcomeReordered
	OutcomeMoved
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReordered:
		return "reordered"
	case OutcomeMoved:
		return "moved"
	case OutcomeRolledBack:
		return "rolled back"
	default:
		return "ignored"
	}
}

// Reorderer is the single callback a drag-and-drop adapter needs.
type Reorderer interface {
	OnReorder(ctx context.Context, d Drop) (Outcome, error)
}

var _ Reorderer = (*Board)(nil)

// PendingMove is the optimistic half of a cross-column move. It must be
// completed with CompleteMove exactly once.
type PendingMove struct {
	OpportunityID string
	FromStageID   string
	ToStageID     string
	FromIndex     int
	Generation    uint64

	fromPage bool // the card was a paged row of the source column
	original *domain.Opportunity
	value    decimal.Decimal
}

// OnReorder applies a drop. Cross-column drops send exactly one move and
// block until it completes or times out.
func (b *Board) OnReorder(ctx context.Context, d Drop) (Outcome, error) {
	if d.DestStageID == "" {
		return OutcomeIgnored, nil
	}
	if d.DestStageID == d.SourceStageID {
		if d.DestIndex == d.SourceIndex {
			return OutcomeIgnored, nil
		}
		return b.reorder(d)
	}

	pm, err := b.BeginMove(d.OpportunityID, d.DestStageID, d.DestIndex)
	if err != nil {
		return OutcomeIgnored, err
	}
	saved, err := b.Execute(ctx, pm)
	applied, err := b.complete(pm, saved, err)
	if !applied {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeRolledBack, err
	}
	return OutcomeMoved, nil
}

func (b *Board) reorder(d Drop) (Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	col := b.columnLocked(d.SourceStageID)
	if col == nil {
		return OutcomeIgnored, fmt.Errorf("stage %s: %w", d.SourceStageID, domain.ErrUnknownColumn)
	}
	i := col.indexOf(d.OpportunityID)
	if i < 0 {
		return OutcomeIgnored, fmt.Errorf("opportunity %s: %w", d.OpportunityID, domain.ErrNotFound)
	}
	if _, busy := b.pending[d.OpportunityID]; busy {
		return OutcomeIgnored, fmt.Errorf("opportunity %s: %w", d.OpportunityID, domain.ErrMoveInFlight)
	}
	col.insert(col.remove(i), d.DestIndex)
	return OutcomeReordered, nil
}

// BeginMove moves the card locally to destStageID at destIndex and adjusts
// both columns' totals. A card with a move in flight is rejected with
// ErrMoveInFlight.
func (b *Board) BeginMove(opportunityID, destStageID string, destIndex int) (*PendingMove, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	src, i, ok := b.locateLocked(opportunityID)
	if !ok {
		return nil, fmt.Errorf("opportunity %s: %w", opportunityID, domain.ErrNotFound)
	}
	dest := b.columnLocked(destStageID)
	if dest == nil {
		return nil, fmt.Errorf("stage %s: %w", destStageID, domain.ErrUnknownColumn)
	}
	if dest == src {
		return nil, ErrSameColumn
	}
	if _, busy := b.pending[opportunityID]; busy {
		return nil, fmt.Errorf("opportunity %s: %w", opportunityID, domain.ErrMoveInFlight)
	}

	b.gens[opportunityID]++
	card := src.remove(i)
	pm := &PendingMove{
		OpportunityID: opportunityID,
		FromStageID:   src.Stage.ID,
		ToStageID:     dest.Stage.ID,
		FromIndex:     i,
		Generation:    b.gens[opportunityID],
		fromPage:      src.forget(opportunityID),
		original:      card,
		value:         card.ValueOrZero(),
	}
	moved := card.Clone()
	moved.StageID = dest.Stage.ID
	moved.RecomputeWeighted(&dest.Stage)
	dest.insert(moved, destIndex)
	shiftTotals(src, dest, pm.value)
	b.pending[opportunityID] = pm
	return pm, nil
}

// Execute sends the move for pm, bounded by the move timeout.
func (b *Board) Execute(ctx context.Context, pm *PendingMove) (*domain.Opportunity, error) {
	ctx, cancel := context.WithTimeout(ctx, b.moveTimeout)
	defer cancel()
	return b.api.MoveOpportunity(ctx, pm.OpportunityID, pm.ToStageID)
}

// CompleteMove reconciles the board with the server's answer. On error, or
// when the server answers with an older version than the board held, the card
// returns to its source slot and a notice is queued. Otherwise the server
// entity replaces the card and decides its column. The in-flight guard is
// released here and nowhere else. Completions for a superseded move are
// dropped; CompleteMove then reports false.
func (b *Board) CompleteMove(pm *PendingMove, saved *domain.Opportunity, err error) bool {
	applied, _ := b.complete(pm, saved, err)
	return applied
}

// complete is CompleteMove that also returns the error the move ended with.
func (b *Board) complete(pm *PendingMove, saved *domain.Opportunity, err error) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending[pm.OpportunityID] != pm || b.gens[pm.OpportunityID] != pm.Generation {
		b.logger.Warn("stale move response ignored", "opportunity_id", pm.OpportunityID, "generation", pm.Generation)
		return false, nil
	}
	delete(b.pending, pm.OpportunityID)

	if err == nil && saved.Version < pm.original.Version {
		err = fmt.Errorf("move answered with version %d, board holds %d: %w",
			saved.Version, pm.original.Version, domain.ErrVersionConflict)
	}
	if err != nil {
		b.rollbackLocked(pm, err)
		return true, err
	}

	if src := b.columnLocked(pm.FromStageID); src != nil {
		src.forget(pm.OpportunityID)
	}
	cur, i, ok := b.locateLocked(pm.OpportunityID)
	if !ok {
		return true, nil
	}
	if saved.StageID == cur.Stage.ID {
		cur.Items[i] = saved.Clone()
		return true, nil
	}
	// The server put the card somewhere else; follow it.
	cur.remove(i)
	cur.forget(pm.OpportunityID)
	actual := b.columnLocked(saved.StageID)
	shiftTotals(cur, actual, pm.value)
	if actual != nil {
		actual.insert(saved.Clone(), 0)
	}
	b.logger.Info("move relocated by server", "opportunity_id", pm.OpportunityID,
		"requested_stage_id", pm.ToStageID, "stage_id", saved.StageID)
	return true, nil
}

func (b *Board) rollbackLocked(pm *PendingMove, err error) {
	// A card a reload left off the board is not put back; the server
	// totals already count it in its source column.
	if cur, i, ok := b.locateLocked(pm.OpportunityID); ok {
		src := b.columnLocked(pm.FromStageID)
		cur.remove(i)
		cur.forget(pm.OpportunityID)
		shiftTotals(cur, src, pm.value)
		if src != nil {
			src.insert(pm.original, pm.FromIndex)
			if pm.fromPage {
				src.remember(pm.OpportunityID)
			}
		}
	}
	b.noticeLocked(pm.OpportunityID, fmt.Sprintf("Não foi possível mover %q", pm.original.Name), err)
	b.logger.Warn("move rolled back", "opportunity_id", pm.OpportunityID,
		"from_stage_id", pm.FromStageID, "to_stage_id", pm.ToStageID, "error", err)
}

// Pending reports whether a move of the opportunity is in flight.
func (b *Board) Pending(opportunityID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[opportunityID]
	return ok
}

// shiftTotals moves one card's worth of totals from src to dest. Either may be nil.
func shiftTotals(src, dest *Column, value decimal.Decimal) {
	if src != nil {
		src.TotalCount--
		src.TotalValue = src.TotalValue.Sub(value)
	}
	if dest != nil {
		dest.TotalCount++
		dest.TotalValue = dest.TotalValue.Add(value)
	}
}
