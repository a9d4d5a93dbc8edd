package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lifetime-go/lifetime/pkg/config"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter manifest",
		Long: `Write a starter manifest to the project root, or to the --config path.
The format follows the file extension: .json writes JSON, anything else YAML.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing manifest")
	return cmd
}

func (c *CLI) runInit(force bool) error {
	path := c.config.InitPath()

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("manifest %s already exists. Use --force to overwrite", path)
	}

	if err := config.NewManager().WriteConfig(path, config.Default()); err != nil {
		return err
	}

	c.console.Success(fmt.Sprintf("Created manifest at %s", path))
	c.console.Info("Run `lifetime plan` to see the start order, then `lifetime run`")
	return nil
}
