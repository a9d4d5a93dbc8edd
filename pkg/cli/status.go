package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/lifetime-go/lifetime/internal/state"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the last run",
		Long: `Print the snapshot that ` + "`lifetime run`" + ` keeps next to the manifest.
A run whose process has exited or stopped refreshing its heartbeat is
reported as stale.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(output, time.Now())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}

func (c *CLI) runStatus(output string, now time.Time) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q (expected table or json)", output)
	}

	path, err := c.config.ManifestPath()
	if err != nil {
		return err
	}
	rs, err := state.Load(path)
	if errors.Is(err, state.ErrNoRun) {
		c.console.Info("No run recorded for " + path)
		return nil
	}
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(c.output)
		enc.SetIndent("", "  ")
		return enc.Encode(rs)
	}

	liveness := text.FgGreen.Sprint("alive")
	if !rs.IsAlive(now) {
		liveness = text.FgYellow.Sprint("stale")
	}
	fmt.Fprintf(c.output, "Run %s: %s (%s, started %s)\n",
		valueOr(rs.RunID, "-"), rs.Status, liveness, rs.StartedAt.Format(time.RFC3339))
	if rs.LastError != "" {
		fmt.Fprintf(c.output, "%s %s\n", text.FgRed.Sprint("Error:"), rs.LastError)
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.output)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("MODULE"),
		text.FgHiCyan.Sprint("STATE"),
		text.FgHiCyan.Sprint("DURATION"),
		text.FgHiCyan.Sprint("ERROR"),
	})
	for _, name := range rs.ModuleNames() {
		rec := rs.Modules[name]
		duration := "-"
		if rec.Duration > 0 {
			duration = rec.Duration.Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{name, colorState(rec.State), duration, valueOr(rec.LastError, "-")})
	}
	t.Render()
	return nil
}

func colorState(s string) string {
	switch s {
	case "running":
		return text.FgGreen.Sprint(s)
	case "failed":
		return text.FgRed.Sprint(s)
	case "pending":
		return text.FgHiBlack.Sprint(s)
	default:
		return s
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
