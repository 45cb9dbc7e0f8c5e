package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/board"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/charmbracelet/lipgloss"
)

// CardState carries the per-card flags the board view highlights.
type CardState struct {
	Selected bool
	Pending  bool
}

// KanbanFields returns the definitions flagged for display on cards.
func KanbanFields(defs []*domain.FieldDefinition) []*domain.FieldDefinition {
	var out []*domain.FieldDefinition
	for _, d := range defs {
		if d.VisibleInKanban {
			out = append(out, d)
		}
	}
	return out
}

// ColumnHeader renders a column title with its count and total value.
func ColumnHeader(col board.Column, width int, focused bool) string {
	title := StageBadge(&col.Stage)
	if focused {
		title = lipgloss.NewStyle().Underline(true).Render(title)
	}
	meta := fmt.Sprintf("%d · %s", col.TotalCount, Money(col.TotalValue))
	if col.Loading {
		meta += " …"
	}
	return lipgloss.NewStyle().Width(width).Render(title + "\n" + Dim(Truncate(meta, width)))
}

// RenderCard renders one opportunity card of the given outer width.
func RenderCard(o *domain.Opportunity, stage *domain.Stage, kanban []*domain.FieldDefinition, now time.Time, width int, st CardState) string {
	inner := max(width-4, 4)
	lines := []string{Bold(Truncate(o.Name, inner))}
	lines = append(lines, MoneyPtr(o.Value)+Dim(" · "+fmt.Sprintf("%dd", o.DaysInStage(now))))
	for _, d := range kanban {
		v, ok := o.CustomFields[d.Name]
		if !ok {
			continue
		}
		text := fmt.Sprintf("%s: %s", d.DisplayLabel(), fieldrender.Format(d, &v))
		lines = append(lines, Dim(Truncate(text, inner)))
	}
	if o.IsStagnant(stage, now) {
		lines = append(lines, StyleRed.Render("⚠ stagnant"))
	}
	if st.Pending {
		lines = append(lines, StyleYellow.Render("saving…"))
	}

	border := ColorDim
	if st.Selected {
		border = ColorHeader
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(width - 2).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// FormatBoard renders the whole board as plain columns, one block per
// stage. It is the non-interactive rendering of `pipedeck board`.
func FormatBoard(p *domain.Pipeline, cols []board.Column, defs []*domain.FieldDefinition, now time.Time) string {
	kanban := KanbanFields(defs)
	var b strings.Builder
	b.WriteString(Header(p.Name))
	b.WriteString("\n")
	for _, col := range cols {
		fmt.Fprintf(&b, "\n%s  %s\n", StageBadge(&col.Stage),
			Dim(fmt.Sprintf("%d deals · %s", col.TotalCount, Money(col.TotalValue))))
		for _, o := range col.Items {
			fmt.Fprintf(&b, "  %s  %s  %s", TruncID(o.ID), o.Name, MoneyPtr(o.Value))
			for _, d := range kanban {
				if v, ok := o.CustomFields[d.Name]; ok {
					fmt.Fprintf(&b, "  %s", Dim(d.DisplayLabel()+"="+fieldrender.Format(d, &v)))
				}
			}
			if o.IsStagnant(&col.Stage, now) {
				b.WriteString("  " + StyleRed.Render("⚠"))
			}
			b.WriteString("\n")
		}
		if col.HasMore() {
			b.WriteString(Dim(fmt.Sprintf("  … %d more", col.TotalCount-len(col.Items))) + "\n")
		}
	}
	return b.String()
}
