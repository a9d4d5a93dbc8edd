package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifetime-go/lifetime/pkg/config"
)

func (c *CLI) newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest",
		Long: `Check that the manifest parses, that every module is well formed, and that
the dependency graph is complete and acyclic.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manifest, err := c.loadManifest()
			if err != nil {
				c.console.Error(fmt.Sprintf("Manifest is invalid: %v", err))
				return err
			}
			// Field checks cannot see cycles; a dry run can.
			if _, err := c.plan(cmd.Context(), manifest, nil); err != nil {
				c.console.Error(fmt.Sprintf("Dependency graph is invalid: %v", err))
				return err
			}

			for _, warning := range manifestWarnings(manifest) {
				c.console.Warn(warning)
			}
			c.console.Success(fmt.Sprintf("Manifest is valid (%d modules)", len(manifest.Modules)))
			return nil
		},
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of lifetime",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "lifetime v%s\n", c.config.Version)
		},
	}
}

// manifestWarnings reports problems that only show up at run time.
func manifestWarnings(manifest *config.Config) []string {
	var warnings []string
	for _, mc := range manifest.Modules {
		if mc.EffectiveKind() == config.KindWatch {
			if _, err := os.Stat(mc.Path); err != nil {
				warnings = append(warnings, fmt.Sprintf("Module '%s': watch path %s does not exist", mc.Name, mc.Path))
			}
		}
		if mc.Fail != "" {
			warnings = append(warnings, fmt.Sprintf("Module '%s': configured to fail on %s", mc.Name, mc.Fail))
		}
	}
	return warnings
}
