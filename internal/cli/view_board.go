package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/pipedeck/internal/board"
	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/form"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultBoardWidth  = 100
	defaultBoardHeight = 30
	minColumnWidth     = 24
	columnGap          = 1
)

type boardLoadedMsg struct {
	defs []*domain.FieldDefinition
	err  error
}

type pageLoadedMsg struct {
	stageID string
	err     error
}

type moveDoneMsg struct {
	pm    *board.PendingMove
	saved *domain.Opportunity
	err   error
}

type formOpenedMsg struct {
	view *oppFormView
	err  error
}

// boardModel is the kanban TUI of one pipeline. All backend calls run in
// tea.Cmds; the board controller owns the card state.
type boardModel struct {
	ctx        context.Context
	app        *App
	board      *board.Board
	pipelineID string

	defs   []*domain.FieldDefinition
	kanban []*domain.FieldDefinition

	keys    boardKeyMap
	help    help.Model
	spinner spinner.Model
	vp      viewport.Model
	ticking bool

	width, height int
	col, row      int
	loading       bool
	status        string
	statusErr     bool
	loadErr       error
	quitting      bool

	form *oppFormView
}

func newBoardModel(ctx context.Context, app *App, pipelineID string) *boardModel {
	cfg := app.Config
	sp := spinner.New()
	sp.Spinner = formatter.Frames
	sp.Style = formatter.StylePurple
	return &boardModel{
		ctx: ctx,
		app: app,
		board: board.New(app.API,
			board.WithLogger(app.logger()),
			board.WithPageSize(cfg.PageSize),
			board.WithMoveTimeout(cfg.MoveTimeout()),
			board.WithLoadTimeout(cfg.LoadTimeout()),
		),
		pipelineID: pipelineID,
		keys:       newBoardKeyMap(),
		help:       help.New(),
		spinner:    sp,
		vp:         viewport.New(defaultBoardWidth, defaultBoardHeight-4),
		width:      defaultBoardWidth,
		height:     defaultBoardHeight,
		loading:    true,
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.startTick())
}

func (m *boardModel) loadCmd() tea.Cmd {
	ctx, b, api, id := m.ctx, m.board, m.app.API, m.pipelineID
	return func() tea.Msg {
		if err := b.Load(ctx, id); err != nil {
			return boardLoadedMsg{err: err}
		}
		defs, err := api.ListFieldDefinitions(ctx, id)
		return boardLoadedMsg{defs: defs, err: err}
	}
}

func (m *boardModel) startTick() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return m.spinner.Tick
}

// busy reports whether a load or a move is outstanding.
func (m *boardModel) busy() bool {
	if m.loading {
		return true
	}
	for _, c := range m.board.Columns() {
		if c.Loading {
			return true
		}
		for _, o := range c.Items {
			if m.board.Pending(o.ID) {
				return true
			}
		}
	}
	return false
}

func (m *boardModel) setStatus(msg string) {
	m.status, m.statusErr = msg, false
}

func (m *boardModel) setError(err error) {
	m.status, m.statusErr = err.Error(), true
}

func (m *boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		if m.form != nil {
			m.form.form = m.form.form.WithWidth(msg.Width)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.ticking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.loadErr = msg.err
			m.setError(fmt.Errorf("load failed: %w", msg.err))
			return m, nil
		}
		m.loadErr = nil
		m.defs = msg.defs
		m.kanban = formatter.KanbanFields(msg.defs)
		m.clamp()
		return m, nil

	case pageLoadedMsg:
		if msg.err != nil {
			m.setError(msg.err)
		}
		m.clamp()
		return m, nil

	case moveDoneMsg:
		m.completeMove(msg)
		return m, nil

	case formOpenedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.form = msg.view
		return m, m.form.Init()

	case formClosedMsg:
		return m, m.closeForm(msg)
	}

	if m.form != nil {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		return m, m.handleKey(keyMsg)
	}
	return m, nil
}

func (m *boardModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	cols := m.board.Columns()
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Reload):
		m.loading = true
		m.setStatus("Reloading…")
		return tea.Batch(m.loadCmd(), m.startTick())
	case key.Matches(msg, m.keys.Left):
		m.col--
		m.clamp()
	case key.Matches(msg, m.keys.Right):
		m.col++
		m.clamp()
	case key.Matches(msg, m.keys.Up):
		m.row--
		m.clamp()
	case key.Matches(msg, m.keys.Down):
		if m.col < len(cols) && m.row >= len(cols[m.col].Items)-1 && cols[m.col].HasMore() {
			return m.loadMore(cols[m.col])
		}
		m.row++
		m.clamp()
	case key.Matches(msg, m.keys.MoveLeft):
		return m.moveSelected(cols, -1)
	case key.Matches(msg, m.keys.MoveRight):
		return m.moveSelected(cols, +1)
	case key.Matches(msg, m.keys.RaiseCard):
		m.reorderSelected(cols, -1)
	case key.Matches(msg, m.keys.LowerCard):
		m.reorderSelected(cols, +1)
	case key.Matches(msg, m.keys.More):
		if m.col < len(cols) {
			return m.loadMore(cols[m.col])
		}
	case key.Matches(msg, m.keys.Add):
		return m.openCreate(cols)
	case key.Matches(msg, m.keys.Edit):
		return m.openEdit(cols)
	}
	return nil
}

// clamp keeps the cursor on an existing column and card.
func (m *boardModel) clamp() {
	cols := m.board.Columns()
	m.col = max(0, min(m.col, len(cols)-1))
	if len(cols) == 0 {
		m.row = 0
		return
	}
	m.row = max(0, min(m.row, len(cols[m.col].Items)-1))
}

func (m *boardModel) selected(cols []board.Column) *domain.Opportunity {
	if m.col >= len(cols) || m.row >= len(cols[m.col].Items) {
		return nil
	}
	return cols[m.col].Items[m.row]
}

func (m *boardModel) loadMore(col board.Column) tea.Cmd {
	if !col.HasMore() {
		m.setStatus(fmt.Sprintf("%s: all %d loaded", col.Stage.Name, col.TotalCount))
		return nil
	}
	ctx, b, stageID := m.ctx, m.board, col.Stage.ID
	m.setStatus("Loading more " + col.Stage.Name + "…")
	return tea.Batch(func() tea.Msg {
		return pageLoadedMsg{stageID: stageID, err: b.LoadMore(ctx, stageID)}
	}, m.startTick())
}

// moveSelected starts an optimistic move of the selected card to the
// neighbouring column. The cursor follows the card.
func (m *boardModel) moveSelected(cols []board.Column, delta int) tea.Cmd {
	card := m.selected(cols)
	if card == nil {
		return nil
	}
	dest := m.col + delta
	if dest < 0 || dest >= len(cols) {
		return nil
	}
	pm, err := m.board.BeginMove(card.ID, cols[dest].Stage.ID, 0)
	if err != nil {
		if errors.Is(err, domain.ErrMoveInFlight) {
			m.setError(fmt.Errorf("%s is still being saved", card.Name))
			return nil
		}
		m.setError(err)
		return nil
	}
	m.col, m.row = dest, 0
	m.setStatus(fmt.Sprintf("Moving %s → %s", card.Name, cols[dest].Stage.Name))

	b, ctx := m.board, m.ctx
	return tea.Batch(func() tea.Msg {
		saved, err := b.Execute(ctx, pm)
		return moveDoneMsg{pm: pm, saved: saved, err: err}
	}, m.startTick())
}

func (m *boardModel) completeMove(msg moveDoneMsg) {
	applied := m.board.CompleteMove(msg.pm, msg.saved, msg.err)
	notices := m.board.DrainNotices()
	switch {
	case len(notices) > 0:
		n := notices[len(notices)-1]
		m.setError(fmt.Errorf("%s: %v", n.Message, n.Err))
	case applied && msg.err == nil:
		stage := ""
		if p := m.board.Pipeline(); p != nil {
			if s := p.StageByID(msg.saved.StageID); s != nil {
				stage = s.Name
			}
		}
		m.setStatus(fmt.Sprintf("Moved %s to %s", msg.saved.Name, stage))
	}
	m.follow(msg.pm.OpportunityID)
}

// follow puts the cursor on the card wherever it ended up.
func (m *boardModel) follow(id string) {
	for ci, c := range m.board.Columns() {
		for ri, o := range c.Items {
			if o.ID == id {
				m.col, m.row = ci, ri
				return
			}
		}
	}
	m.clamp()
}

func (m *boardModel) reorderSelected(cols []board.Column, delta int) {
	card := m.selected(cols)
	if card == nil {
		return
	}
	dest := m.row + delta
	if dest < 0 || dest >= len(cols[m.col].Items) {
		return
	}
	stageID := cols[m.col].Stage.ID
	_, err := m.board.OnReorder(m.ctx, board.Drop{
		OpportunityID: card.ID,
		SourceStageID: stageID,
		DestStageID:   stageID,
		SourceIndex:   m.row,
		DestIndex:     dest,
	})
	if err != nil {
		m.setError(err)
		return
	}
	m.row = dest
}

func (m *boardModel) openCreate(cols []board.Column) tea.Cmd {
	if m.col >= len(cols) {
		return nil
	}
	stage := cols[m.col].Stage
	if !stage.AllowsQuickAdd() {
		m.setError(fmt.Errorf("quick add is disabled on %s", stage.Name))
		return nil
	}
	ctx, app, width, pipelineID := m.ctx, m.app, m.width, m.pipelineID
	return func() tea.Msg {
		ctrl, err := form.NewCreate(ctx, app.API, pipelineID, app.formOptions()...)
		if err != nil {
			return formOpenedMsg{err: err}
		}
		ctrl.SetStage(stage.ID)
		view, err := newOppFormView(ctx, ctrl, width)
		return formOpenedMsg{view: view, err: err}
	}
}

func (m *boardModel) openEdit(cols []board.Column) tea.Cmd {
	card := m.selected(cols)
	if card == nil {
		return nil
	}
	if m.board.Pending(card.ID) {
		m.setError(fmt.Errorf("%s is still being saved", card.Name))
		return nil
	}
	ctx, app, width, id := m.ctx, m.app, m.width, card.ID
	return func() tea.Msg {
		ctrl, err := form.NewEdit(ctx, app.API, id, app.formOptions()...)
		if err != nil {
			return formOpenedMsg{err: err}
		}
		view, err := newOppFormView(ctx, ctrl, width)
		return formOpenedMsg{view: view, err: err}
	}
}

// closeForm handles the end of a form session. Validation failures reopen
// the form with the errors listed; other failures keep the form open too.
func (m *boardModel) closeForm(msg formClosedMsg) tea.Cmd {
	if m.form == nil {
		return nil
	}
	if msg.err == nil {
		if msg.saved != nil {
			m.board.Upsert(msg.saved)
			m.follow(msg.saved.ID)
			m.setStatus("Saved " + msg.saved.Name)
		}
		m.form = nil
		return nil
	}

	ctrl := m.form.ctrl
	reopened, err := newOppFormView(m.ctx, ctrl, m.width)
	if err != nil {
		m.form = nil
		m.setError(err)
		return nil
	}
	var invalid *form.ValidationFailed
	var verrs domain.ValidationErrors
	switch {
	case errors.As(msg.err, &invalid):
		reopened.errs = invalid.Errors
	case errors.As(msg.err, &verrs):
		reopened.errs = verrs
	default:
		reopened.failure = msg.err
	}
	m.form = reopened
	return m.form.Init()
}

func (m *boardModel) View() string {
	if m.quitting {
		return ""
	}
	if m.form != nil {
		return m.form.View()
	}

	p := m.board.Pipeline()
	var b strings.Builder
	title := "…"
	if p != nil {
		title = p.Name
	}
	b.WriteString(formatter.StyleHeader.Render(strings.ToUpper(title)))
	if m.busy() {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n")

	if p == nil {
		if m.loadErr != nil {
			b.WriteString(formatter.StyleRed.Render(m.loadErr.Error()) + "\n")
			b.WriteString(formatter.Dim("r reload · q quit"))
		} else {
			b.WriteString(formatter.Dim("Loading board…"))
		}
		return b.String()
	}

	header := lipgloss.Height(b.String())
	footer := m.footer()
	m.vp.Width = m.width
	m.vp.Height = max(m.height-header-lipgloss.Height(footer), 3)
	body, selTop, selHeight := m.renderColumns()
	m.vp.SetContent(body)
	m.scrollTo(selTop, selHeight)

	b.WriteString(m.vp.View())
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func (m *boardModel) footer() string {
	status := ""
	if m.status != "" {
		if m.statusErr {
			status = formatter.StyleRed.Render("✖ " + m.status)
		} else {
			status = formatter.Dim(m.status)
		}
	}
	return status + "\n" + m.help.View(m.keys)
}

// visibleColumns returns the window of column indexes that fits the width,
// always including the focused column.
func (m *boardModel) visibleColumns(n int) (start, end, width int) {
	fit := max(1, (m.width+columnGap)/(minColumnWidth+columnGap))
	if fit >= n {
		return 0, n, max(minColumnWidth, (m.width-columnGap*(n-1))/max(n, 1))
	}
	start = min(max(0, m.col-fit/2), n-fit)
	return start, start + fit, minColumnWidth
}

// renderColumns renders the visible columns side by side and returns the
// line offset and height of the selected card.
func (m *boardModel) renderColumns() (string, int, int) {
	cols := m.board.Columns()
	if len(cols) == 0 {
		return formatter.Dim("This pipeline has no stages."), 0, 0
	}
	start, end, width := m.visibleColumns(len(cols))
	now := m.app.now()

	selTop, selHeight := 0, 0
	rendered := make([]string, 0, end-start)
	for ci := start; ci < end; ci++ {
		col := cols[ci]
		focused := ci == m.col
		parts := []string{formatter.ColumnHeader(col, width, focused)}
		line := lipgloss.Height(parts[0])
		for ri, o := range col.Items {
			card := formatter.RenderCard(o, &col.Stage, m.kanban, now, width, formatter.CardState{
				Selected: focused && ri == m.row,
				Pending:  m.board.Pending(o.ID),
			})
			if focused && ri == m.row {
				selTop, selHeight = line, lipgloss.Height(card)
			}
			line += lipgloss.Height(card)
			parts = append(parts, card)
		}
		if col.HasMore() {
			parts = append(parts, formatter.Dim(fmt.Sprintf("↓ %d more (n)", col.TotalCount-len(col.Items))))
		}
		if len(col.Items) == 0 {
			hint := "empty"
			if focused && col.Stage.AllowsQuickAdd() {
				hint = "empty · a to add"
			}
			parts = append(parts, formatter.Dim(hint))
		}
		rendered = append(rendered, lipgloss.NewStyle().Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
		if ci < end-1 {
			rendered = append(rendered, strings.Repeat(" ", columnGap))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...), selTop, selHeight
}

func (m *boardModel) scrollTo(top, height int) {
	switch {
	case top < m.vp.YOffset:
		m.vp.SetYOffset(top)
	case top+height > m.vp.YOffset+m.vp.Height:
		m.vp.SetYOffset(top + height - m.vp.Height)
	}
}
