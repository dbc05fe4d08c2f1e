package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/funproject/fun/internal/presentation"
)

func (r *runner) pluginsCmd() *cobra.Command {
	var typePrefix string

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List discovered plugins as JSON",
		Long: `List every discovered plugin with its options, shortcuts and
effective dashboard placement as JSON.

Examples:
  # List all plugins
  fun plugins

  # Only Lua plugins
  fun plugins --type lua:

  # Parse specific fields with jq
  fun plugins | jq '.[].shortcuts'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dtos := make([]presentation.PluginDTO, 0)
			for _, m := range r.app.Parser().Manifests() {
				if !strings.HasPrefix(m.Type, typePrefix) {
					continue
				}
				inst, _ := r.app.Loader().Instance(m.Type)
				dtos = append(dtos, presentation.FromManifest(m, inst))
			}
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatPlugins(dtos)
		},
	}
	cmd.Flags().StringVarP(&typePrefix, "type", "t", "", "Only list plugin types starting with this prefix (e.g., lua:)")
	return cmd
}
