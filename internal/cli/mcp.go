package cli

import (
	"github.com/spf13/cobra"

	"github.com/Alekzandar/vibereader/internal/mcpserver"
)

// NewMCPCommand creates the mcp command, an MCP tool server on stdio.
func NewMCPCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve vibereader tools to an MCP client over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			srv := mcpserver.New(control(cfg), store, newDictionary(cfg), rootOpts.Logger)
			return srv.ServeStdio(Version)
		},
	}
}
