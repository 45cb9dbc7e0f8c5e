package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/pipedeck/internal/app"
	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/alexanderramin/pipedeck/internal/form"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newOppCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "opp",
		Aliases: []string{"opportunity", "deal"},
		Short:   "Create, edit and move opportunities",
	}

	cmd.AddCommand(
		newOppAddCmd(app),
		newOppUpdateCmd(app),
		newOppShowCmd(app),
		newOppMoveCmd(app),
		newOppListCmd(app),
		newOppHistoryCmd(app),
		newOppSuggestCmd(app),
	)

	return cmd
}

// oppFlags are the editable fields shared by add and update. Only flags the
// user actually passed are applied to the form.
type oppFlags struct {
	name   string
	value  string
	close  string
	notes  string
	stage  string
	fields []string
}

func (f *oppFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "Opportunity name")
	fs.StringVar(&f.value, "value", "", "Deal value, e.g. 1500.00 (empty clears)")
	fs.StringVar(&f.close, "close", "", "Expected close date YYYY-MM-DD (empty clears)")
	fs.StringVar(&f.notes, "notes", "", "Free-form notes")
	fs.StringVar(&f.stage, "stage", "", "Stage id or name")
	fs.StringArrayVarP(&f.fields, "field", "f", nil, "Custom field as name=value (repeatable; multiselect values comma separated)")
}

func (f *oppFlags) apply(flags *pflag.FlagSet, c *form.Controller) error {
	if flags.Changed("name") {
		c.SetName(f.name)
	}
	if flags.Changed("value") {
		if strings.TrimSpace(f.value) == "" {
			c.SetValue(nil)
		} else {
			d, err := decimal.NewFromString(strings.TrimSpace(f.value))
			if err != nil {
				return fmt.Errorf("invalid --value %q: %w", f.value, err)
			}
			c.SetValue(&d)
		}
	}
	if flags.Changed("close") {
		if strings.TrimSpace(f.close) == "" {
			c.SetExpectedClose(nil)
		} else {
			t, err := time.Parse(domain.DateLayout, strings.TrimSpace(f.close))
			if err != nil {
				return fmt.Errorf("invalid --close %q: %w", f.close, err)
			}
			c.SetExpectedClose(&t)
		}
	}
	if flags.Changed("notes") {
		c.SetNotes(f.notes)
	}
	if flags.Changed("stage") {
		s, err := resolveStage(c.Pipeline(), f.stage)
		if err != nil {
			return err
		}
		c.SetStage(s.ID)
	}
	for _, a := range f.fields {
		name, raw, err := fieldrender.ParseAssignment(a)
		if err != nil {
			return fmt.Errorf("--field: %w", err)
		}
		if err := c.SetFieldRaw(name, raw); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("pipeline %s has no field %q", c.Pipeline().Name, name)
			}
			return err
		}
	}
	return nil
}

// submitForm runs Submit and prints per-field errors when validation fails.
func submitForm(cmd *cobra.Command, c *form.Controller) (*domain.Opportunity, error) {
	saved, err := c.Submit(cmd.Context())
	var invalid *form.ValidationFailed
	var verrs domain.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		printValidation(cmd.ErrOrStderr(), invalid.Errors)
		return nil, fmt.Errorf("opportunity is invalid (see %q)", invalid.Section)
	case errors.As(err, &verrs):
		printValidation(cmd.ErrOrStderr(), verrs)
		return nil, fmt.Errorf("opportunity rejected by server")
	case err != nil:
		return nil, err
	}
	return saved, nil
}

func printValidation(w io.Writer, errs domain.ValidationErrors) {
	for _, k := range errs.Keys() {
		fmt.Fprintf(w, "  %s %s: %s\n", formatter.StyleRed.Render("✖"), k, errs[k].Message)
	}
}

func newOppAddCmd(app *App) *cobra.Command {
	var f oppFlags
	var pipeline string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an opportunity",
		Example: `  pipedeck opp add --pipeline Vendas --name "ACME Ltda" --value 1000 \
    --field canal=email --field produtos=erp,crm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePipeline(cmd.Context(), app, pipeline)
			if err != nil {
				return err
			}
			c, err := form.NewCreate(cmd.Context(), app.API, p.ID, app.formOptions()...)
			if err != nil {
				return err
			}
			if err := f.apply(cmd.Flags(), c); err != nil {
				return err
			}
			saved, err := submitForm(cmd, c)
			if err != nil {
				return err
			}
			stage := p.StageByID(saved.StageID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s in %s %s\n",
				formatter.StyleGreen.Render("✔"), formatter.Bold(saved.Name),
				formatter.StageBadge(stage), formatter.Dim(saved.ID))
			return nil
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", "", "Pipeline id or name")
	_ = cmd.MarkFlagRequired("pipeline")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newOppUpdateCmd(app *App) *cobra.Command {
	var f oppFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Edit an opportunity",
		Long: `Edit an opportunity. Only the flags given are changed; the rest of the
opportunity, including custom fields not named with --field, is kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := form.NewEdit(cmd.Context(), app.API, args[0], app.formOptions()...)
			if err != nil {
				return fmt.Errorf("opportunity %s: %w", args[0], err)
			}
			if err := f.apply(cmd.Flags(), c); err != nil {
				return err
			}
			if !c.Dirty() {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("Nothing to update."))
				return nil
			}
			saved, err := submitForm(cmd, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %s %s\n",
				formatter.StyleGreen.Render("✔"), formatter.Bold(saved.Name),
				formatter.Dim(fmt.Sprintf("(version %d)", saved.Version)))
			return nil
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func newOppShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			o, p, err := loadOpportunity(ctx, app, args[0])
			if err != nil {
				return err
			}
			defs, err := app.API.ListFieldDefinitions(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatOpportunity(o, p, defs, app.now()))
			return nil
		},
	}
}

func newOppMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move ID STAGE",
		Short: "Move an opportunity to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, p, err := loadOpportunity(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			dest, err := resolveStage(p, args[1])
			if err != nil {
				return err
			}
			from := p.StageByID(o.StageID)
			if dest.ID == o.StageID {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already in %s\n", formatter.Bold(o.Name), formatter.StageBadge(dest))
				return nil
			}

			ctx := cmd.Context()
			if d := app.Config.MoveTimeout(); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			saved, err := app.API.MoveOpportunity(ctx, o.ID, dest.ID)
			if err != nil {
				return fmt.Errorf("move %s: %w", o.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Moved %s: %s %s %s %s\n",
				formatter.StyleGreen.Render("✔"), formatter.Bold(saved.Name),
				formatter.StageBadge(from), formatter.Dim("→"), formatter.StageBadge(p.StageByID(saved.StageID)),
				formatter.Dim("weighted "+formatter.MoneyPtr(saved.WeightedValue)))
			return nil
		},
	}
}

func newOppListCmd(app *App) *cobra.Command {
	var stage string
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list PIPELINE",
		Short: "List opportunities per stage, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			p, err := resolvePipeline(ctx, app, args[0])
			if err != nil {
				return err
			}
			stages := p.SortedStages()
			if stage != "" {
				s, err := resolveStage(p, stage)
				if err != nil {
					return err
				}
				stages = []domain.Stage{*s}
			}
			if limit <= 0 {
				limit = app.Config.PageSize
			}

			out := cmd.OutOrStdout()
			for i, s := range stages {
				page, err := app.API.ListOpportunitiesPage(ctx, s.ID, app.pageRequest(offset, limit))
				if err != nil {
					return fmt.Errorf("stage %s: %w", s.Name, err)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, formatter.FormatOpportunityList(&s, page, offset, app.now()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stage, "stage", "s", "", "Only this stage (id or name)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many opportunities per stage")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (default: config page_size)")
	return cmd
}

func newOppHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show an opportunity's stage transitions and time spent per stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			o, p, err := loadOpportunity(ctx, app, args[0])
			if err != nil {
				return err
			}
			transitions, err := app.API.StageHistory(ctx, o.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.Header(o.Name))
			fmt.Fprint(out, formatter.FormatHistory(transitions, p))

			spent := domain.TimeInStages(transitions, o, app.now())
			if len(spent) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			for _, s := range p.SortedStages() {
				if d, ok := spent[s.ID]; ok {
					fmt.Fprintf(out, "  %-20s %s\n", s.Name, formatter.FormatDuration(d))
				}
			}
			return nil
		},
	}
}

func newOppSuggestCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest ID",
		Short: "Show product suggestions for an opportunity's line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Suggestions == nil {
				return fmt.Errorf("suggestions are only available against a local database")
			}
			o, _, err := loadOpportunity(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			byItem, err := app.Suggestions.SuggestForOpportunity(cmd.Context(), o.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(o.LineItems) == 0 {
				fmt.Fprintln(out, formatter.Dim("No line items."))
				return nil
			}
			for _, li := range o.LineItems {
				fmt.Fprintf(out, "%s\n", formatter.Bold(li.Description))
				suggestions := byItem[li.ID]
				if len(suggestions) == 0 {
					fmt.Fprintln(out, formatter.Dim("  no suggestions"))
					continue
				}
				sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].Score > suggestions[j].Score })
				for _, s := range suggestions {
					fmt.Fprintf(out, "  %s %s\n", s.Label, formatter.Dim(s.ProductID))
				}
			}
			return nil
		},
	}
}

// pageRequest builds a page request; a non-positive limit uses the configured page size.
func (a *App) pageRequest(offset, limit int) app.PageRequest {
	if limit <= 0 {
		limit = a.Config.PageSize
	}
	return app.PageRequest{Offset: offset, Limit: limit}.Normalize()
}
