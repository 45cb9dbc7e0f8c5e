package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/shopspring/decimal"
)

// FormatPipelineList renders the pipelines table of `pipeline list`.
func FormatPipelineList(pipelines []*domain.Pipeline) string {
	if len(pipelines) == 0 {
		return Dim("No pipelines. Import one with `pipedeck pipeline import FILE`.") + "\n"
	}
	rows := make([][]string, 0, len(pipelines))
	for _, p := range pipelines {
		mode := string(p.Transitions.Mode)
		if mode == "" {
			mode = string(domain.TransitionsAny)
		}
		rows = append(rows, []string{TruncID(p.ID), Bold(p.Name), fmt.Sprintf("%d", len(p.Stages)), mode})
	}
	return RenderTable([]string{"ID", "NAME", "STAGES", "TRANSITIONS"}, rows)
}

// FormatPipeline renders one pipeline with its stages and custom fields.
func FormatPipeline(p *domain.Pipeline, defs []*domain.FieldDefinition) string {
	var b strings.Builder
	b.WriteString(Header(p.Name))
	b.WriteString("\n")
	b.WriteString(Dim(p.ID))
	b.WriteString("\n\n")

	rows := make([][]string, 0, len(p.Stages))
	for _, s := range p.SortedStages() {
		stagnation := "--"
		if s.StagnationAlertDays != nil {
			stagnation = fmt.Sprintf("%dd", *s.StagnationAlertDays)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.OrderIndex),
			StageBadge(&s),
			ProbabilityBar(s.ProbabilityPercent, 10),
			stagnation,
		})
	}
	b.WriteString(RenderTable([]string{"#", "STAGE", "PROBABILITY", "STAGNANT AFTER"}, rows))

	if p.Transitions.Mode == domain.TransitionsExplicit {
		b.WriteString("\n")
		b.WriteString(StyleHeader.Render("Allowed transitions"))
		b.WriteString("\n")
		for _, pair := range p.Transitions.Allowed {
			from, to := p.StageByID(pair.From), p.StageByID(pair.To)
			fmt.Fprintf(&b, "  %s → %s\n", stageName(from, pair.From), stageName(to, pair.To))
		}
	}

	if len(defs) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatFieldList(defs))
	}
	return b.String()
}

func stageName(s *domain.Stage, id string) string {
	if s == nil {
		return TruncID(id)
	}
	return s.Name
}

// FormatFieldList renders custom field definitions in form order.
func FormatFieldList(defs []*domain.FieldDefinition) string {
	if len(defs) == 0 {
		return Dim("No custom fields.") + "\n"
	}
	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		req := ""
		if d.Required {
			req = StyleYellow.Render("required")
		}
		kanban := ""
		if d.VisibleInKanban {
			kanban = "✔"
		}
		opts := make([]string, 0, len(d.Options))
		for _, o := range d.Options {
			opts = append(opts, o.Value)
		}
		rows = append(rows, []string{
			d.Name, d.DisplayLabel(), StylePurple.Render(string(d.Type)), req, d.Group, kanban, strings.Join(opts, ", "),
		})
	}
	return RenderTable([]string{"NAME", "LABEL", "TYPE", "", "GROUP", "KANBAN", "OPTIONS"}, rows)
}

// FormatSummary renders per-stage totals plus a pipeline total line.
func FormatSummary(p *domain.Pipeline, sums []app.StageSummary) string {
	var b strings.Builder
	b.WriteString(Header(p.Name + " summary"))
	b.WriteString("\n")

	count := 0
	total, weighted := decimal.Zero, decimal.Zero
	rows := make([][]string, 0, len(sums)+1)
	for _, s := range sums {
		stage := p.StageByID(s.StageID)
		if stage == nil {
			stage = &domain.Stage{Name: s.Name, IsWon: s.IsWon, IsLost: s.IsLost}
		}
		rows = append(rows, []string{StageBadge(stage), fmt.Sprintf("%d", s.Count), Money(s.TotalValue), Money(s.WeightedTotal)})
		count += s.Count
		total = total.Add(s.TotalValue)
		weighted = weighted.Add(s.WeightedTotal)
	}
	rows = append(rows, []string{Bold("Total"), Bold(fmt.Sprintf("%d", count)), Bold(Money(total)), Bold(Money(weighted))})
	b.WriteString(RenderTable([]string{"STAGE", "DEALS", "VALUE", "WEIGHTED"}, rows, AlignRight(1, 2, 3)))
	return b.String()
}

// FormatOpportunityList renders one page of a stage column.
func FormatOpportunityList(stage *domain.Stage, page *app.OpportunityPage, offset int, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", StageBadge(stage),
		Dim(fmt.Sprintf("%d deals · %s", page.TotalCount, Money(page.TotalValue))))
	if len(page.Items) == 0 {
		b.WriteString(Dim("  (empty)") + "\n")
		return b.String()
	}
	rows := make([][]string, 0, len(page.Items))
	for _, o := range page.Items {
		rows = append(rows, []string{
			TruncID(o.ID), o.Name, MoneyPtr(o.Value), MoneyPtr(o.WeightedValue), daysLabel(o, stage, now),
		})
	}
	b.WriteString(RenderTable([]string{"ID", "NAME", "VALUE", "WEIGHTED", "IN STAGE"}, rows, AlignRight(2, 3, 4)))
	if page.HasMore() {
		fmt.Fprintf(&b, "%s\n", Dim(fmt.Sprintf("showing %d-%d of %d · next: --offset %d",
			offset+1, offset+len(page.Items), page.TotalCount, page.NextOffset)))
	}
	return b.String()
}

func daysLabel(o *domain.Opportunity, stage *domain.Stage, now time.Time) string {
	label := fmt.Sprintf("%dd", o.DaysInStage(now))
	if o.IsStagnant(stage, now) {
		return StyleRed.Render("⚠ " + label)
	}
	return label
}

// FormatOpportunity renders the detail view of one deal.
func FormatOpportunity(o *domain.Opportunity, p *domain.Pipeline, defs []*domain.FieldDefinition, now time.Time) string {
	stage := p.StageByID(o.StageID)
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", StyleDim.Render(fmt.Sprintf("%-16s", label)), value)
	}
	line("Pipeline", p.Name)
	line("Stage", StageBadge(stage))
	line("Value", MoneyPtr(o.Value))
	line("Weighted", MoneyPtr(o.WeightedValue))
	if o.ExpectedCloseDate != nil {
		line("Expected close", o.ExpectedCloseDate.Format(domain.DateLayout)+"  "+CloseDateStyled(*o.ExpectedCloseDate, now))
	}
	line("In stage", daysLabel(o, stage, now))
	line("Version", fmt.Sprintf("%d", o.Version))
	if o.Notes != "" {
		line("Notes", o.Notes)
	}

	if len(defs) > 0 {
		b.WriteString("\n")
		for _, d := range defs {
			v, ok := o.CustomFields[d.Name]
			text := Dim("--")
			if ok {
				text = fieldrender.Format(d, &v)
			}
			line(d.DisplayLabel(), text)
		}
	}

	if len(o.LineItems) > 0 {
		b.WriteString("\n")
		rows := make([][]string, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			rows = append(rows, []string{li.Description, li.Quantity.String(), Money(li.UnitPrice), Money(li.Total())})
		}
		b.WriteString(RenderTable([]string{"ITEM", "QTY", "UNIT", "TOTAL"}, rows, AlignRight(1, 2, 3)))
	}
	return RenderBox(o.Name, strings.TrimRight(b.String(), "\n"))
}

// FormatHistory renders an opportunity's stage transitions, oldest first.
func FormatHistory(transitions []domain.StageTransition, p *domain.Pipeline) string {
	if len(transitions) == 0 {
		return Dim("No stage history.") + "\n"
	}
	rows := make([][]string, 0, len(transitions))
	for _, t := range transitions {
		from := Dim("(created)")
		spent := ""
		if t.FromStageID != "" {
			from = stageName(p.StageByID(t.FromStageID), t.FromStageID)
			if !t.EnteredFromAt.IsZero() {
				spent = FormatDuration(t.TransitionedAt.Sub(t.EnteredFromAt))
			}
		}
		rows = append(rows, []string{
			t.TransitionedAt.Local().Format("2006-01-02 15:04"),
			from,
			stageName(p.StageByID(t.ToStageID), t.ToStageID),
			spent,
		})
	}
	return RenderTable([]string{"WHEN", "FROM", "TO", "TIME IN FROM"}, rows)
}

// FormatDuration renders d as days and hours, or minutes under an hour.
func FormatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	days := int(d / (24 * time.Hour))
	hours := int(d%(24*time.Hour)) / int(time.Hour)
	switch {
	case days > 0 && hours > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case days > 0:
		return fmt.Sprintf("%dd", days)
	default:
		return fmt.Sprintf("%dh", hours)
	}
}
