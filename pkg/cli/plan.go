package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/lifetime-go/lifetime/pkg/config"
	"github.com/lifetime-go/lifetime/pkg/lifecycle"
	"github.com/lifetime-go/lifetime/pkg/module"
)

// PlanOutput is the JSON form of `lifetime plan`
type PlanOutput struct {
	Order        []string            `json:"order"`
	Waves        [][]string          `json:"waves"`
	Dependencies map[string][]string `json:"dependencies"`
}

func (c *CLI) newPlanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plan [module...]",
		Short: "Show the start order without starting anything",
		Long: `Resolve the manifest's dependency graph and print the order in which
modules would start. Modules in the same wave start concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd.Context(), args, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}

func (c *CLI) runPlan(ctx context.Context, names []string, output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q (expected table or json)", output)
	}

	_, manifest, err := c.loadManifest()
	if err != nil {
		return err
	}
	plan, err := c.plan(ctx, manifest, names)
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(c.output)
		enc.SetIndent("", "  ")
		return enc.Encode(toPlanOutput(plan))
	}
	c.renderPlan(manifest, plan)
	return nil
}

func (c *CLI) plan(ctx context.Context, manifest *config.Config, names []string) (*lifecycle.Plan, error) {
	log := c.newLogger(manifest)
	app, err := c.newApplication(manifest, log)
	if err != nil {
		return nil, err
	}
	source, err := selectModules(app, names)
	if err != nil {
		return nil, err
	}
	return app.manager.Plan(ctx, source)
}

func (c *CLI) renderPlan(manifest *config.Config, plan *lifecycle.Plan) {
	t := table.NewWriter()
	t.SetOutputMirror(c.output)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("WAVE"),
		text.FgHiCyan.Sprint("MODULE"),
		text.FgHiCyan.Sprint("KIND"),
		text.FgHiCyan.Sprint("REQUIRES"),
	})

	for i, wave := range plan.Waves {
		for _, id := range wave {
			kind := config.KindScript
			if mc, ok := manifest.Module(id.String()); ok {
				kind = mc.EffectiveKind()
			}
			t.AppendRow(table.Row{i + 1, id, kind, joinIDs(plan.Dependencies[id])})
		}
		if i < len(plan.Waves)-1 {
			t.AppendSeparator()
		}
	}
	t.Render()

	fmt.Fprintf(c.output, "\n%s %s %s\n",
		text.FgHiBlue.Sprint("Total:"),
		text.FgHiWhite.Sprint(len(plan.Order)),
		text.FgHiBlue.Sprint("modules"))
}

func toPlanOutput(plan *lifecycle.Plan) PlanOutput {
	out := PlanOutput{
		Order:        idStrings(plan.Order),
		Waves:        make([][]string, 0, len(plan.Waves)),
		Dependencies: make(map[string][]string, len(plan.Dependencies)),
	}
	for _, wave := range plan.Waves {
		out.Waves = append(out.Waves, idStrings(wave))
	}
	for id, deps := range plan.Dependencies {
		out.Dependencies[id.String()] = idStrings(deps)
	}
	return out
}

func idStrings(ids []module.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func joinIDs(ids []module.ID) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(idStrings(ids), ", ")
}
