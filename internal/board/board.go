// Package board holds the kanban view state of one pipeline: one paginated
// column per stage plus the optimistic bookkeeping of in-flight moves.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMoveTimeout = 10 * time.Second
	DefaultLoadTimeout = 15 * time.Second
)

// Column is one stage of the board. TotalCount and TotalValue come from the
// page source and cover the whole stage, not only the loaded Items.
type Column struct {
	Stage      domain.Stage
	Items      []*domain.Opportunity
	TotalCount int
	TotalValue decimal.Decimal
	Loading    bool

	// fetched holds the ids of the server rows this column has paged
	// through. Its size is the offset of the next page; cards dropped in
	// locally are not counted because the server files them by its own order.
	fetched map[string]struct{}
}

func (c *Column) HasMore() bool {
	return c.TotalCount > len(c.Items)
}

func (c *Column) cursor() int {
	return len(c.fetched)
}

func (c *Column) remember(id string) {
	if c.fetched == nil {
		c.fetched = map[string]struct{}{}
	}
	c.fetched[id] = struct{}{}
}

// forget drops id from the paged rows and reports whether it was one.
func (c *Column) forget(id string) bool {
	_, ok := c.fetched[id]
	delete(c.fetched, id)
	return ok
}

func (c *Column) indexOf(id string) int {
	return slices.IndexFunc(c.Items, func(o *domain.Opportunity) bool { return o.ID == id })
}

func (c *Column) insert(o *domain.Opportunity, at int) {
	at = max(0, min(at, len(c.Items)))
	c.Items = slices.Insert(c.Items, at, o)
}

func (c *Column) remove(at int) *domain.Opportunity {
	o := c.Items[at]
	c.Items = slices.Delete(c.Items, at, at+1)
	return o
}

func (c *Column) snapshot() Column {
	out := *c
	out.Items = make([]*domain.Opportunity, len(c.Items))
	for i, o := range c.Items {
		out.Items[i] = o.Clone()
	}
	return out
}

// Notice is a transient message for the user, e.g. a rolled back move.
type Notice struct {
	OpportunityID string
	Message       string
	Err           error
	At            time.Time
}

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithPageSize(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

func WithMoveTimeout(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.moveTimeout = d
		}
	}
}

func WithLoadTimeout(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.loadTimeout = d
		}
	}
}

// Board is safe for concurrent use; network calls run without holding its lock.
type Board struct {
	api         app.PipelineAPI
	logger      *slog.Logger
	pageSize    int
	moveTimeout time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	loads    uint64 // bumped when a Load starts; older results are dropped
	pipeline *domain.Pipeline
	columns  []*Column
	pending  map[string]*PendingMove
	gens     map[string]uint64
	notices  []Notice
}

func New(api app.PipelineAPI, opts ...Option) *Board {
	b := &Board{
		api:         api,
		logger:      slog.New(slog.DiscardHandler),
		pageSize:    app.DefaultPageSize,
		moveTimeout: DefaultMoveTimeout,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		pending:     map[string]*PendingMove{},
		gens:        map[string]uint64{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load fetches the pipeline and the first page of every column concurrently.
// The whole load shares one timeout. On error the previous state is kept, and
// a Load overtaken by a later one is discarded. Moves still in flight keep
// their guard and their optimistic placement on the new columns.
func (b *Board) Load(ctx context.Context, pipelineID string) error {
	b.mu.Lock()
	b.loads++
	token := b.loads
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.loadTimeout)
	defer cancel()

	p, err := b.api.GetPipelineWithStages(ctx, pipelineID)
	if err != nil {
		return fmt.Errorf("loading pipeline %s: %w", pipelineID, err)
	}
	stages := p.SortedStages()
	pages := make([]*app.OpportunityPage, len(stages))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range stages {
		g.Go(func() error {
			page, err := b.api.ListOpportunitiesPage(gctx, s.ID, app.PageRequest{Limit: b.pageSize})
			if err != nil {
				return fmt.Errorf("loading column %q: %w", s.Name, err)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	columns := make([]*Column, len(stages))
	for i, s := range stages {
		columns[i] = &Column{
			Stage:      s,
			Items:      pages[i].Items,
			TotalCount: pages[i].TotalCount,
			TotalValue: pages[i].TotalValue,
		}
		for _, o := range pages[i].Items {
			columns[i].remember(o.ID)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if token != b.loads {
		b.logger.Debug("superseded board load dropped", "pipeline_id", p.ID)
		return nil
	}
	b.pipeline = p
	b.columns = columns
	for _, pm := range b.pending {
		b.replaceLocked(pm)
	}
	b.logger.Debug("board loaded", "pipeline_id", p.ID, "columns", len(columns), "pending", len(b.pending))
	return nil
}

// replaceLocked puts the card of an in-flight move back into its destination
// column after a reload. Cards outside the loaded pages stay unseen.
func (b *Board) replaceLocked(pm *PendingMove) {
	pm.fromPage = false
	cur, i, ok := b.locateLocked(pm.OpportunityID)
	if !ok || cur.Stage.ID == pm.ToStageID {
		return
	}
	dest := b.columnLocked(pm.ToStageID)
	if dest == nil {
		return
	}
	card := cur.remove(i)
	if forgot := cur.forget(card.ID); cur.Stage.ID == pm.FromStageID {
		pm.fromPage = forgot
		pm.FromIndex = i
		pm.original = card
	}
	pm.value = card.ValueOrZero()
	moved := card.Clone()
	moved.StageID = dest.Stage.ID
	moved.RecomputeWeighted(&dest.Stage)
	dest.insert(moved, 0)
	shiftTotals(cur, dest, pm.value)
}

// LoadMore appends the next page of one column. Pages are requested from the
// number of server rows already paged through; cards already on the board are
// skipped.
func (b *Board) LoadMore(ctx context.Context, stageID string) error {
	b.mu.Lock()
	col := b.columnLocked(stageID)
	if col == nil {
		b.mu.Unlock()
		return fmt.Errorf("stage %s: %w", stageID, domain.ErrUnknownColumn)
	}
	if col.Loading {
		b.mu.Unlock()
		return fmt.Errorf("stage %s: %w", stageID, domain.ErrColumnBusy)
	}
	if !col.HasMore() {
		b.mu.Unlock()
		return nil
	}
	col.Loading = true
	req := app.PageRequest{Offset: col.cursor(), Limit: b.pageSize}
	loads := b.loads
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.loadTimeout)
	defer cancel()
	page, err := b.api.ListOpportunitiesPage(ctx, stageID, req)

	b.mu.Lock()
	defer b.mu.Unlock()
	col.Loading = false
	if loads != b.loads || b.columnLocked(stageID) != col {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading more of stage %s: %w", stageID, err)
	}
	for _, o := range page.Items {
		col.remember(o.ID)
		if _, _, ok := b.locateLocked(o.ID); ok {
			continue
		}
		col.Items = append(col.Items, o)
	}
	col.TotalCount = page.TotalCount
	col.TotalValue = page.TotalValue
	return nil
}

func (b *Board) Pipeline() *domain.Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pipeline
}

// Columns returns a copy of every column in stage order.
func (b *Board) Columns() []Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Column, len(b.columns))
	for i, c := range b.columns {
		out[i] = c.snapshot()
	}
	return out
}

func (b *Board) Column(stageID string) (Column, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.columnLocked(stageID)
	if c == nil {
		return Column{}, false
	}
	return c.snapshot(), true
}

// Lookup returns a copy of the card with that id. Unknown ids yield
// (nil, false) so callers can render a placeholder.
func (b *Board) Lookup(id string) (*domain.Opportunity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, i, ok := b.locateLocked(id)
	if !ok {
		return nil, false
	}
	return c.Items[i].Clone(), true
}

// Upsert places a created or edited opportunity on the board, relocating it
// when its stage changed. Opportunities of other pipelines are ignored.
func (b *Board) Upsert(o *domain.Opportunity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dest := b.columnLocked(o.StageID)
	if dest == nil {
		return
	}
	if c, i, ok := b.locateLocked(o.ID); ok {
		old := c.remove(i)
		if c != dest {
			c.forget(o.ID)
		}
		c.TotalCount--
		c.TotalValue = c.TotalValue.Sub(old.ValueOrZero())
		if c == dest {
			dest.insert(o.Clone(), i)
			dest.TotalCount++
			dest.TotalValue = dest.TotalValue.Add(o.ValueOrZero())
			return
		}
	}
	dest.insert(o.Clone(), 0)
	dest.TotalCount++
	dest.TotalValue = dest.TotalValue.Add(o.ValueOrZero())
}

// Notices returns the pending notices without clearing them.
func (b *Board) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.notices)
}

func (b *Board) DrainNotices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

func (b *Board) columnLocked(stageID string) *Column {
	for _, c := range b.columns {
		if c.Stage.ID == stageID {
			return c
		}
	}
	return nil
}

func (b *Board) locateLocked(id string) (*Column, int, bool) {
	for _, c := range b.columns {
		if i := c.indexOf(id); i >= 0 {
			return c, i, true
		}
	}
	return nil, -1, false
}

func (b *Board) noticeLocked(id, msg string, err error) {
	b.notices = append(b.notices, Notice{OpportunityID: id, Message: msg, Err: err, At: b.now()})
}
