package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/alexanderramin/pipedeck/internal/form"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"
)

// formClosedMsg is sent when the opportunity form finishes. Saved is nil
// when the form was cancelled.
type formClosedMsg struct {
	saved *domain.Opportunity
	err   error
}

// oppFormView edits one opportunity. The fixed fields are bound to local
// strings and copied into the controller on submit; custom fields are huh
// surfaces from the field renderer that write through to the controller.
type oppFormView struct {
	ctx  context.Context
	ctrl *form.Controller
	form *huh.Form

	name      string
	value     string
	closeDate string
	notes     string
	stageID   string

	errs       domain.ValidationErrors
	failure    error
	submitting bool
}

func newOppFormView(ctx context.Context, ctrl *form.Controller, width int) (*oppFormView, error) {
	v := &oppFormView{ctx: ctx, ctrl: ctrl}
	vals := ctrl.Values()
	v.name = vals.Name
	v.notes = vals.Notes
	v.stageID = vals.StageID
	if vals.Value != nil {
		v.value = vals.Value.String()
	}
	if vals.ExpectedClose != nil {
		v.closeDate = vals.ExpectedClose.Format(domain.DateLayout)
	}

	stageOpts := make([]huh.Option[string], 0, len(ctrl.Pipeline().Stages))
	for _, s := range ctrl.Pipeline().SortedStages() {
		stageOpts = append(stageOpts, huh.NewOption(s.Name, s.ID))
	}

	groups := []*huh.Group{
		huh.NewGroup(
			huh.NewInput().Key(domain.KeyName).Title("Nome *").Value(&v.name),
			huh.NewInput().Key(domain.KeyValue).Title("Valor").Placeholder("0.00").Value(&v.value).
				Validate(validateDecimal),
			huh.NewInput().Key(domain.KeyExpectedClose).Title("Previsão de fechamento").Placeholder("AAAA-MM-DD").
				Value(&v.closeDate).Validate(validateDate),
			huh.NewSelect[string]().Key(domain.KeyStage).Title("Etapa *").Options(stageOpts...).Value(&v.stageID),
			huh.NewText().Key("notes").Title("Observações").Lines(3).Value(&v.notes),
		).Title(string(form.SectionBasics)),
	}

	for _, sec := range ctrl.Sections() {
		if len(sec.Fields) == 0 {
			continue
		}
		fields := make([]huh.Field, 0, len(sec.Fields))
		for _, def := range sec.Fields {
			s, err := ctrl.Surface(def.Name, fieldrender.LayoutFull)
			if err != nil {
				return nil, err
			}
			fields = append(fields, s.Field)
		}
		groups = append(groups, huh.NewGroup(fields...).Title(string(sec.Section)))
	}

	v.form = huh.NewForm(groups...).WithTheme(pipedeckHuhTheme()).WithShowHelp(false)
	if width > 0 {
		v.form = v.form.WithWidth(width)
	}
	return v, nil
}

func validateDecimal(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := decimal.NewFromString(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("valor inválido")
	}
	return nil
}

func validateDate(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := time.Parse(domain.DateLayout, strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("use AAAA-MM-DD")
	}
	return nil
}

func (v *oppFormView) Init() tea.Cmd {
	return v.form.Init()
}

func (v *oppFormView) title() string {
	if e := v.ctrl.Editing(); e != nil {
		return "Editar " + e.Name
	}
	return "Nova oportunidade · " + v.ctrl.Pipeline().Name
}

func (v *oppFormView) Update(msg tea.Msg) (*oppFormView, tea.Cmd) {
	if v.submitting {
		return v, nil
	}
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return v, func() tea.Msg { return formClosedMsg{} }
	}

	model, cmd := v.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		v.form = f
	}

	switch v.form.State {
	case huh.StateAborted:
		return v, func() tea.Msg { return formClosedMsg{} }
	case huh.StateCompleted:
		return v, tea.Batch(cmd, v.submit())
	}
	return v, cmd
}

// applyBasics copies the bound fixed fields into the controller.
func (v *oppFormView) applyBasics() error {
	v.ctrl.SetName(strings.TrimSpace(v.name))
	if s := strings.TrimSpace(v.value); s == "" {
		v.ctrl.SetValue(nil)
	} else {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("valor: %w", err)
		}
		v.ctrl.SetValue(&d)
	}
	if s := strings.TrimSpace(v.closeDate); s == "" {
		v.ctrl.SetExpectedClose(nil)
	} else {
		t, err := time.Parse(domain.DateLayout, s)
		if err != nil {
			return fmt.Errorf("previsão de fechamento: %w", err)
		}
		v.ctrl.SetExpectedClose(&t)
	}
	v.ctrl.SetNotes(v.notes)
	v.ctrl.SetStage(v.stageID)
	return nil
}

// submit applies the fixed fields and sends one create or update.
func (v *oppFormView) submit() tea.Cmd {
	if err := v.applyBasics(); err != nil {
		return func() tea.Msg { return formClosedMsg{err: err} }
	}
	v.submitting = true
	ctx, ctrl := v.ctx, v.ctrl
	return func() tea.Msg {
		saved, err := ctrl.Submit(ctx)
		return formClosedMsg{saved: saved, err: err}
	}
}

func (v *oppFormView) View() string {
	var b strings.Builder
	b.WriteString(formatter.Header(v.title()))
	b.WriteString("\n")
	if v.failure != nil {
		b.WriteString(formatter.StyleRed.Render("✖ "+v.failure.Error()) + "\n")
	}
	for _, k := range v.errs.Keys() {
		label := k
		if def := v.ctrl.Definition(k); def != nil {
			label = def.DisplayLabel()
		}
		fmt.Fprintf(&b, "%s %s: %s\n", formatter.StyleRed.Render("✖"), label, v.errs[k].Message)
	}
	b.WriteString("\n")
	if v.submitting {
		b.WriteString(formatter.Dim("Salvando…"))
		return b.String()
	}
	b.WriteString(v.form.View())
	b.WriteString("\n" + formatter.Dim("enter next · esc cancel"))
	return b.String()
}
