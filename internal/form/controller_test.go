package form

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/alexanderramin/pipedeck/internal/repository"
	"github.com/alexanderramin/pipedeck/internal/service"
	"github.com/alexanderramin/pipedeck/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyAPI counts writes and can fail or block them.
type spyAPI struct {
	app.PipelineAPI

	mu      sync.Mutex
	creates int
	updates int
	fail    error
	entered chan struct{}
	release chan struct{}
}

func (s *spyAPI) write() error {
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.fail
}

func (s *spyAPI) CreateOpportunity(ctx context.Context, p app.OpportunityPayload) (*domain.Opportunity, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	if err := s.write(); err != nil {
		return nil, err
	}
	return s.PipelineAPI.CreateOpportunity(ctx, p)
}

func (s *spyAPI) UpdateOpportunity(ctx context.Context, id string, p app.OpportunityPayload) (*domain.Opportunity, error) {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	if err := s.write(); err != nil {
		return nil, err
	}
	return s.PipelineAPI.UpdateOpportunity(ctx, id, p)
}

type fixture struct {
	api      *spyAPI
	database *sql.DB
	sales    testutil.SalesFixture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	engine := service.NewEngine(
		repository.NewSQLitePipelineRepo(database),
		repository.NewSQLiteFieldRepo(database),
		repository.NewSQLiteOpportunityRepo(database),
		repository.NewSQLiteTransitionRepo(database),
		testutil.NewTestUoW(database),
	)
	return &fixture{
		api:      &spyAPI{PipelineAPI: engine},
		database: database,
		sales:    testutil.SeedSales(t, database),
	}
}

func (f *fixture) addField(t *testing.T, d *domain.FieldDefinition) {
	t.Helper()
	require.NoError(t, repository.NewSQLiteFieldRepo(f.database).Create(context.Background(), d))
}

// addOrdersPipeline creates the pipeline that activates the order subform.
func (f *fixture) addOrdersPipeline(t *testing.T) *domain.Pipeline {
	t.Helper()
	ctx := context.Background()
	p := testutil.NewTestPipeline("Pedidos")
	require.NoError(t, repository.NewSQLitePipelineRepo(f.database).Create(ctx, p))
	require.NoError(t, repository.NewSQLiteStageRepo(f.database).Create(ctx, testutil.NewTestStage(p.ID, "Novo", 0, testutil.WithProbability(20))))
	return p
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestCreate_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := NewCreate(ctx, f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)
	assert.False(t, c.IsEdit())
	assert.False(t, c.Dirty())
	assert.Equal(t, f.sales.Lead.ID, c.Values().StageID, "initial stage preselected")

	c.SetName("ACME")
	c.SetValue(dec(1000))
	assert.True(t, c.Dirty())

	saved, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.creates)
	assert.Equal(t, "100", saved.WeightedValue.String())
	assert.False(t, c.Dirty())
	assert.True(t, c.IsEdit(), "a saved form continues as an edit")

	c.SetName("ACME S.A.")
	_, err = c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.creates)
	assert.Equal(t, 1, f.api.updates)
}

func TestCreate_ValidationUnionAndSection(t *testing.T) {
	f := newFixture(t)
	f.addField(t, testutil.NewTestField(f.sales.Pipeline.ID, "prazo_entrega", domain.FieldDate,
		testutil.Required(), testutil.InGroup("Entrega", 0), testutil.WithLabel("Prazo de entrega")))
	ctx := context.Background()

	c, err := NewCreate(ctx, f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)
	c.SetValue(dec(-5))

	_, err = c.Submit(ctx)
	var vf *ValidationFailed
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, []string{"name", "prazo_entrega", "value"}, vf.Errors.Keys())
	assert.Equal(t, SectionBasics, vf.Section)
	assert.Equal(t, "Prazo de entrega é obrigatório", vf.Errors["prazo_entrega"].Message)
	assert.Zero(t, f.api.creates, "nothing sent")

	c.SetName("ACME")
	c.SetValue(nil)
	_, err = c.Submit(ctx)
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, []string{"prazo_entrega"}, vf.Errors.Keys())
	assert.Equal(t, Section("Entrega"), vf.Section)
	assert.Equal(t, Section("Entrega"), c.ActiveSection())

	require.NoError(t, c.SetFieldRaw("prazo_entrega", "2025-10-01"))
	saved, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-01", saved.CustomFields["prazo_entrega"].String())
	assert.Equal(t, SectionBasics, c.ActiveSection())
}

func TestCreate_ForeignOrMissingStage(t *testing.T) {
	f := newFixture(t)
	c, err := NewCreate(context.Background(), f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)
	c.SetName("x")

	c.SetStage("")
	errs := c.Validate()
	assert.Equal(t, domain.MissingRequiredField, errs[domain.KeyStage].Kind)

	c.SetStage("elsewhere")
	errs = c.Validate()
	assert.Equal(t, domain.InvalidValue, errs[domain.KeyStage].Kind)
}

func TestVariantSubform(t *testing.T) {
	f := newFixture(t)
	orders := f.addOrdersPipeline(t)
	f.addField(t, testutil.NewTestField(orders.ID, "canal", domain.FieldText))
	f.addField(t, testutil.NewTestField(orders.ID, "quantidade", domain.FieldText))
	ctx := context.Background()

	c, err := NewCreate(ctx, f.api, orders.ID, WithVariantName("pedidos"))
	require.NoError(t, err)
	require.True(t, c.VariantActive())
	sections := c.Sections()
	require.Len(t, sections, 3)
	assert.Equal(t, []Section{SectionBasics, SectionVariant, SectionOther},
		[]Section{sections[0].Section, sections[1].Section, sections[2].Section})
	require.Len(t, sections[2].Fields, 1, "the subform shadows a pipeline field with the same name")
	assert.Equal(t, domain.FieldNumber, c.Definition("quantidade").Type)

	c.SetName("Pedido 1")
	_, err = c.Submit(ctx)
	var vf *ValidationFailed
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, []string{"data_entrega", "forma_pagamento", "numero_pedido"}, vf.Errors.Keys())
	assert.Equal(t, SectionVariant, vf.Section)

	require.NoError(t, c.SetFieldRaw("numero_pedido", "4021"))
	require.NoError(t, c.SetFieldRaw("data_entrega", "2025-11-20"))
	require.NoError(t, c.SetFieldRaw("forma_pagamento", "pix"))
	require.NoError(t, c.SetFieldRaw("canal", "balcão"))
	saved, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4021", saved.CustomFields["numero_pedido"].Text)
	assert.Equal(t, "pix", saved.CustomFields["forma_pagamento"].Text)
	assert.Equal(t, "balcão", saved.CustomFields["canal"].Text, "one map for both sources")

	c.SetName("Pedido 2")
	require.NoError(t, c.SetFieldRaw("forma_pagamento", "cheque"))
	errs := c.Validate()
	assert.Equal(t, domain.InvalidOptionMembership, errs["forma_pagamento"].Kind)
}

func TestVariantSubform_InactiveElsewhere(t *testing.T) {
	f := newFixture(t)
	c, err := NewCreate(context.Background(), f.api, f.sales.Pipeline.ID, WithVariantName("Pedidos"))
	require.NoError(t, err)
	assert.False(t, c.VariantActive())
	assert.Nil(t, c.Definition("numero_pedido"))
	require.Len(t, c.Sections(), 1)
}

func TestEdit_ResetRestoresSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addField(t, testutil.NewTestField(f.sales.Pipeline.ID, "produtos", domain.FieldMultiSelect, testutil.WithOptions("erp", "crm")))
	ctx := context.Background()
	o := testutil.NewTestOpportunity(f.sales.Proposal, "ACME", testutil.WithValue(300),
		testutil.WithCustom("produtos", domain.MultiSelectValue("erp")))
	require.NoError(t, repository.NewSQLiteOpportunityRepo(f.database).Create(ctx, o))

	c, err := NewEdit(ctx, f.api, o.ID)
	require.NoError(t, err)
	before := c.Values()
	assert.Equal(t, "ACME", before.Name)
	assert.Equal(t, f.sales.Proposal.ID, before.StageID)
	assert.Equal(t, []string{"erp"}, c.Field("produtos").Options)

	c.SetName("changed")
	c.SetNotes("call back")
	require.NoError(t, c.SetFieldRaw("produtos", "erp,crm"))
	require.NoError(t, c.SetField("produtos", nil))
	assert.True(t, c.Dirty())

	c.Reset()
	assert.False(t, c.Dirty())
	assert.Equal(t, before, c.Values())
	assert.Zero(t, f.api.updates)
}

func TestEdit_SubmitUpdatesAndMoves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := testutil.NewTestOpportunity(f.sales.Lead, "ACME", testutil.WithValue(200))
	require.NoError(t, repository.NewSQLiteOpportunityRepo(f.database).Create(ctx, o))

	c, err := NewEdit(ctx, f.api, o.ID)
	require.NoError(t, err)
	c.SetStage(f.sales.Proposal.ID)
	c.SetValue(nil)
	closeAt := time.Date(2025, 12, 1, 15, 30, 0, 0, time.UTC)
	c.SetExpectedClose(&closeAt)

	saved, err := c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.updates)
	assert.Equal(t, f.sales.Proposal.ID, saved.StageID)
	assert.Nil(t, saved.Value)
	assert.Equal(t, "2025-12-01", saved.ExpectedCloseDate.Format(domain.DateLayout))
	assert.Equal(t, o.Version+1, c.Editing().Version)

	c.SetName("other")
	c.Reset()
	assert.Equal(t, f.sales.Proposal.ID, c.Values().StageID, "reset goes back to the saved state")
}

func TestEdit_UnknownOpportunity(t *testing.T) {
	f := newFixture(t)
	_, err := NewEdit(context.Background(), f.api, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubmit_TransportFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.api.fail = errors.New("connection reset")
	ctx := context.Background()

	c, err := NewCreate(ctx, f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)
	c.SetName("ACME")

	_, err = c.Submit(ctx)
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create", se.Op)
	assert.True(t, c.Dirty())
	assert.Equal(t, "ACME", c.Values().Name)
	assert.False(t, c.IsEdit())
	assert.False(t, c.Submitting())

	f.api.fail = nil
	_, err = c.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.api.creates)
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	f := newFixture(t)
	f.api.entered = make(chan struct{})
	f.api.release = make(chan struct{})
	ctx := context.Background()

	c, err := NewCreate(ctx, f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)
	c.SetName("ACME")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx)
		done <- err
	}()
	<-f.api.entered
	assert.True(t, c.Submitting())

	_, err = c.Submit(ctx)
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(f.api.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.api.creates)
}

func TestSetField_UnknownAndUnparsable(t *testing.T) {
	f := newFixture(t)
	f.addField(t, testutil.NewTestField(f.sales.Pipeline.ID, "desconto", domain.FieldPercentage))
	c, err := NewCreate(context.Background(), f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetFieldRaw("nope", "1"), domain.ErrNotFound)
	assert.Error(t, c.SetFieldRaw("desconto", "abc"))
	assert.Nil(t, c.Field("desconto"))
	assert.False(t, c.Dirty())

	require.NoError(t, c.SetFieldRaw("desconto", "150"))
	assert.Equal(t, 100.0, c.Field("desconto").Number)
}

func TestSurface_FeedsController(t *testing.T) {
	f := newFixture(t)
	f.addField(t, testutil.NewTestField(f.sales.Pipeline.ID, "canal", domain.FieldSelect, testutil.WithOptions("email", "whatsapp")))
	c, err := NewCreate(context.Background(), f.api, f.sales.Pipeline.ID)
	require.NoError(t, err)

	s, err := c.Surface("canal", fieldrender.LayoutCompact)
	require.NoError(t, err)
	require.NoError(t, s.Apply("whatsapp"))
	assert.Equal(t, "whatsapp", c.Field("canal").Text)
	assert.True(t, c.Dirty())

	_, err = c.Surface("nope", fieldrender.LayoutFull)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
