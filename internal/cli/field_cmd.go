package cli

import (
	"fmt"
	"sort"

	"github.com/alexanderramin/pipedeck/internal/cli/formatter"
	"github.com/alexanderramin/pipedeck/internal/domain"
	"github.com/alexanderramin/pipedeck/internal/fieldrender"
	"github.com/alexanderramin/pipedeck/internal/fieldschema"
	"github.com/spf13/cobra"
)

func newFieldCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "field",
		Aliases: []string{"fields"},
		Short:   "Inspect and migrate custom fields",
	}

	cmd.AddCommand(
		newFieldListCmd(app),
		newFieldMigrateCmd(app),
	)

	return cmd
}

func newFieldListCmd(app *App) *cobra.Command {
	var kanbanOnly bool

	cmd := &cobra.Command{
		Use:   "list PIPELINE",
		Short: "List a pipeline's custom field definitions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.loadContext(cmd.Context())
			defer cancel()

			p, err := resolvePipeline(ctx, app, args[0])
			if err != nil {
				return err
			}
			defs, err := app.API.ListFieldDefinitions(ctx, p.ID)
			if err != nil {
				return err
			}
			if kanbanOnly {
				defs = fieldschema.Kanban(defs)
			}
			if problems := fieldschema.Check(defs); len(problems) > 0 {
				for _, e := range problems {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", formatter.StyleYellow.Render("warning:"), e)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatFieldList(defs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&kanbanOnly, "kanban", false, "Only fields shown on board cards")
	return cmd
}

func newFieldMigrateCmd(app *App) *cobra.Command {
	var renames, retypes []string

	cmd := &cobra.Command{
		Use:   "migrate PIPELINE",
		Short: "Rename or retype custom fields and rewrite stored values",
		Long: `Rename or retype custom fields of a pipeline. Every opportunity's stored
values are rewritten in one transaction; values that cannot be converted
to the new type are dropped and reported.`,
		Example: `  pipedeck field migrate Vendas --rename canal=origem
  pipedeck field migrate Vendas --retype desconto=number`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Migrations == nil {
				return fmt.Errorf("field migrations are only available against a local database")
			}
			m := fieldschema.Migration{Renames: map[string]string{}, Retypes: map[string]domain.FieldType{}}
			for _, r := range renames {
				from, to, err := fieldrender.ParseAssignment(r)
				if err != nil {
					return fmt.Errorf("--rename: %w", err)
				}
				m.Renames[from] = to
			}
			for _, r := range retypes {
				name, typ, err := fieldrender.ParseAssignment(r)
				if err != nil {
					return fmt.Errorf("--retype: %w", err)
				}
				m.Retypes[name] = domain.FieldType(typ)
			}
			if m.IsEmpty() {
				return fmt.Errorf("nothing to migrate: pass --rename or --retype")
			}

			p, err := resolvePipeline(cmd.Context(), app, args[0])
			if err != nil {
				return err
			}
			res, err := app.Migrations.MigrateFieldValues(cmd.Context(), p.ID, m)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Migrated %s: %d opportunities rewritten\n",
				formatter.StyleGreen.Render("✔"), formatter.Bold(p.Name), res.Updated)
			ids := make([]string, 0, len(res.Dropped))
			for id := range res.Dropped {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				for _, d := range res.Dropped[id] {
					fmt.Fprintf(out, "  %s %s %s: %s\n", formatter.StyleYellow.Render("dropped"),
						formatter.TruncID(id), d.Field, d.Reason)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&renames, "rename", nil, "Rename a field: old=new (repeatable)")
	cmd.Flags().StringArrayVar(&retypes, "retype", nil, "Change a field's type: name=type (repeatable)")
	return cmd
}
