// Package form implements the opportunity form: fixed fields, the pipeline's
// custom fields and the optional order subform edited as one payload and
// submitted with a single create or update call.
package form

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Section is a tab of the form. Custom field groups use their group name.
type Section string

const (
	SectionBasics  Section = "Dados básicos"
	SectionVariant Section = VariantGroup
	// SectionOther holds custom fields without a group.
	SectionOther Section = "Campos personalizados"
)

// SectionFields lists the custom definitions shown in one section. The
// basics section has none; its fields are the fixed ones.
type SectionFields struct {
	Section Section
	Fields  []*domain.FieldDefinition
}

// Values is the editable state of the form.
type Values struct {
	Name          string
	Value         *decimal.Decimal
	ExpectedClose *time.Time
	Notes         string
	StageID       string
	Custom        domain.CustomFields
}

func (v Values) clone() Values {
	out := v
	if v.Value != nil {
		d := *v.Value
		out.Value = &d
	}
	if v.ExpectedClose != nil {
		t := *v.ExpectedClose
		out.ExpectedClose = &t
	}
	out.Custom = v.Custom.Clone()
	if out.Custom == nil {
		out.Custom = domain.CustomFields{}
	}
	return out
}

func valuesFrom(o *domain.Opportunity) Values {
	return Values{
		Name:          o.Name,
		Value:         o.Value,
		ExpectedClose: o.ExpectedCloseDate,
		Notes:         o.Notes,
		StageID:       o.StageID,
		Custom:        o.CustomFields,
	}.clone()
}

func cloneValue(v domain.FieldValue) domain.FieldValue {
	v.Options = slices.Clone(v.Options)
	return v
}

type Option func(*Controller)

// WithVariantName sets the pipeline name that activates the order subform.
func WithVariantName(name string) Option {
	return func(c *Controller) { c.variantName = name }
}

func WithValidator(v fieldschema.Validator) Option {
	return func(c *Controller) { c.validator = v }
}

// Controller owns the state of one open form. It is safe for use from a UI
// goroutine while Submit runs in another.
type Controller struct {
	api         app.PipelineAPI
	pipeline    *domain.Pipeline
	defs        []*domain.FieldDefinition
	sections    []SectionFields
	validator   fieldschema.Validator
	variantName string
	variant     bool

	mu       sync.Mutex
	editing  *domain.Opportunity
	snapshot Values
	values   Values
	dirty    bool
	active   Section
	inFlight bool
}

// NewCreate opens an empty form for pipelineID with the initial stage preselected.
func NewCreate(ctx context.Context, api app.PipelineAPI, pipelineID string, opts ...Option) (*Controller, error) {
	c := newController(api, opts)
	if err := c.load(ctx, pipelineID); err != nil {
		return nil, err
	}
	if s := c.pipeline.InitialStage(); s != nil {
		c.snapshot.StageID = s.ID
	}
	c.values = c.snapshot.clone()
	return c, nil
}

// NewEdit opens a form pre-populated from the stored opportunity.
func NewEdit(ctx context.Context, api app.PipelineAPI, opportunityID string, opts ...Option) (*Controller, error) {
	o, err := api.GetOpportunity(ctx, opportunityID)
	if err != nil {
		return nil, err
	}
	c := newController(api, opts)
	if err := c.load(ctx, o.PipelineID); err != nil {
		return nil, err
	}
	c.editing = o.Clone()
	c.snapshot = valuesFrom(o)
	c.values = c.snapshot.clone()
	return c, nil
}

func newController(api app.PipelineAPI, opts []Option) *Controller {
	c := &Controller{
		api:       api,
		validator: fieldschema.DefaultValidator,
		active:    SectionBasics,
		snapshot:  Values{Custom: domain.CustomFields{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) load(ctx context.Context, pipelineID string) error {
	var custom []*domain.FieldDefinition
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.api.GetPipelineWithStages(gctx, pipelineID)
		c.pipeline = p
		return err
	})
	g.Go(func() error {
		defs, err := c.api.ListFieldDefinitions(gctx, pipelineID)
		custom = defs
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading form for pipeline %s: %w", pipelineID, err)
	}

	c.sections = []SectionFields{{Section: SectionBasics}}
	taken := map[string]bool{}
	if c.pipeline.IsVariant(c.variantName) {
		c.variant = true
		vf := VariantFields()
		for _, d := range vf {
			taken[d.Name] = true
		}
		c.defs = append(c.defs, vf...)
		c.sections = append(c.sections, SectionFields{Section: SectionVariant, Fields: vf})
	}
	// The order subform wins over a pipeline field of the same name.
	var own []*domain.FieldDefinition
	for _, d := range custom {
		if !taken[d.Name] {
			own = append(own, d)
		}
	}
	for _, grp := range fieldschema.Grouped(own) {
		s := Section(grp.Name)
		if grp.Name == "" {
			s = SectionOther
		}
		c.defs = append(c.defs, grp.Fields...)
		c.sections = append(c.sections, SectionFields{Section: s, Fields: grp.Fields})
	}
	return nil
}

func (c *Controller) Pipeline() *domain.Pipeline { return c.pipeline }

// Definitions returns every custom definition the form edits, subform first.
func (c *Controller) Definitions() []*domain.FieldDefinition { return c.defs }

func (c *Controller) Sections() []SectionFields { return c.sections }

// VariantActive reports whether the order subform is part of this form.
func (c *Controller) VariantActive() bool { return c.variant }

func (c *Controller) IsEdit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing != nil
}

// Editing returns a copy of the last loaded or saved entity, nil on create.
func (c *Controller) Editing() *domain.Opportunity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing.Clone()
}

func (c *Controller) Values() Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.clone()
}

// Dirty reports unsaved changes. Saving and Reset clear it; a failed
// submission does not.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

func (c *Controller) Submitting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Controller) ActiveSection() Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) SetActiveSection(s Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = s
}

func (c *Controller) mutate(fn func(v *Values)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.values)
	c.dirty = true
}

func (c *Controller) SetName(name string) {
	c.mutate(func(v *Values) { v.Name = name })
}

// SetValue sets the monetary value; nil clears it.
func (c *Controller) SetValue(d *decimal.Decimal) {
	c.mutate(func(v *Values) {
		v.Value = nil
		if d != nil {
			cp := *d
			v.Value = &cp
		}
	})
}

// SetExpectedClose stores the calendar date of t; nil clears it.
func (c *Controller) SetExpectedClose(t *time.Time) {
	c.mutate(func(v *Values) {
		v.ExpectedClose = nil
		if t != nil {
			d := domain.DateValue(*t).Time
			v.ExpectedClose = &d
		}
	})
}

func (c *Controller) SetNotes(notes string) {
	c.mutate(func(v *Values) { v.Notes = notes })
}

func (c *Controller) SetStage(stageID string) {
	c.mutate(func(v *Values) { v.StageID = stageID })
}

// Definition returns the custom definition with that name, or nil.
func (c *Controller) Definition(name string) *domain.FieldDefinition {
	for _, d := range c.defs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Field returns a copy of the current value of a custom field, nil when unset.
func (c *Controller) Field(name string) *domain.FieldValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values.Custom[name]
	if !ok {
		return nil
	}
	cp := cloneValue(v)
	return &cp
}

// SetField replaces the value of a custom field; nil removes it.
func (c *Controller) SetField(name string, val *domain.FieldValue) error {
	if c.Definition(name) == nil {
		return fmt.Errorf("field %q: %w", name, domain.ErrNotFound)
	}
	c.mutate(func(v *Values) {
		if val == nil {
			delete(v.Custom, name)
			return
		}
		v.Custom[name] = cloneValue(*val)
	})
	return nil
}

// SetFieldRaw parses raw with the field's renderer and stores the result.
// A parse error leaves the field untouched.
func (c *Controller) SetFieldRaw(name, raw string) error {
	def := c.Definition(name)
	if def == nil {
		return fmt.Errorf("field %q: %w", name, domain.ErrNotFound)
	}
	v, err := fieldrender.Parse(def, raw)
	if err != nil {
		return err
	}
	return c.SetField(name, v)
}

// Surface returns an editable surface for a custom field wired to SetField.
func (c *Controller) Surface(name string, layout fieldrender.Layout) (*fieldrender.Surface, error) {
	def := c.Definition(name)
	if def == nil {
		return nil, fmt.Errorf("field %q: %w", name, domain.ErrNotFound)
	}
	return fieldrender.Render(def, c.Field(name), func(v *domain.FieldValue) {
		_ = c.SetField(name, v)
	}, layout), nil
}

// Reset discards local edits and restores the loaded (or last saved) state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = c.snapshot.clone()
	c.dirty = false
	c.active = SectionBasics
}

// Validate returns the union of fixed-field and custom-field errors.
func (c *Controller) Validate() domain.ValidationErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

func (c *Controller) validateLocked() domain.ValidationErrors {
	draft := &domain.Opportunity{
		PipelineID: c.pipeline.ID,
		Name:       c.values.Name,
		Value:      c.values.Value,
	}
	var stage *domain.Stage
	if id := c.values.StageID; id != "" {
		if stage = c.pipeline.StageByID(id); stage == nil {
			stage = &domain.Stage{ID: id}
		}
	}
	errs := draft.ValidateBasics(stage)
	errs.Merge(c.validator.ValidateAllFields(c.defs, c.values.Custom).Errors)
	return errs
}

var basicKeys = []string{domain.KeyName, domain.KeyValue, domain.KeyStage, domain.KeyExpectedClose}

func (c *Controller) firstSection(errs domain.ValidationErrors) Section {
	for _, s := range c.sections {
		if s.Section == SectionBasics {
			for _, k := range basicKeys {
				if _, ok := errs[k]; ok {
					return s.Section
				}
			}
			continue
		}
		for _, d := range s.Fields {
			if _, ok := errs[d.Name]; ok {
				return s.Section
			}
		}
	}
	return SectionBasics
}

// Submit validates locally and, when clean, sends exactly one create or
// update. On success the saved entity becomes the new snapshot and the form
// is clean again; edits made while the call was pending are replaced.
func (c *Controller) Submit(ctx context.Context) (*domain.Opportunity, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if errs := c.validateLocked(); len(errs) > 0 {
		c.active = c.firstSection(errs)
		c.mu.Unlock()
		return nil, &ValidationFailed{Errors: errs, Section: c.active}
	}
	payload := c.payloadLocked()
	editing := c.editing
	c.inFlight = true
	c.mu.Unlock()

	var saved *domain.Opportunity
	var err error
	op := "create"
	if editing == nil {
		saved, err = c.api.CreateOpportunity(ctx, payload)
	} else {
		op = "update"
		saved, err = c.api.UpdateOpportunity(ctx, editing.ID, payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if err != nil {
		return nil, &SubmissionError{Op: op, Err: err}
	}
	c.editing = saved.Clone()
	c.snapshot = valuesFrom(saved)
	c.values = c.snapshot.clone()
	c.dirty = false
	c.active = SectionBasics
	return saved, nil
}

func (c *Controller) payloadLocked() app.OpportunityPayload {
	v := c.values.clone()
	p := app.OpportunityPayload{
		PipelineID:        c.pipeline.ID,
		StageID:           &v.StageID,
		Name:              &v.Name,
		Value:             v.Value,
		ExpectedCloseDate: v.ExpectedClose,
		Notes:             &v.Notes,
		CustomFields:      v.Custom,
	}
	if c.editing != nil {
		p.ClearValue = v.Value == nil
		p.ClearExpectedClose = v.ExpectedClose == nil
		p.ExpectedVersion = c.editing.Version
	}
	return p
}
