package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	fmcp "github.com/foliodev/folio/internal/mcp"
	"github.com/foliodev/folio/internal/service"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start a read-only MCP server over the content store",
		Long: `Start a Model Context Protocol (MCP) server that lets AI agents read the
portfolio content. It exposes tools and resources for listing and reading
buckets. Nothing it offers can write; edits go through the HTTP API.

In stdio mode the server speaks JSON-RPC over stdin/stdout, for clients that
launch it as a subprocess. In HTTP mode it listens on the given port.`,
		Example: `  folio mcp                               # stdio mode
  folio mcp --transport http --port 3001  # streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.MCP.Transport = transport
			}
			if cmd.Flags().Changed("port") {
				cfg.MCP.Port = port
			}

			logger := newLogger(cfg, false)
			st, err := openStore(cmdContext(cmd), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			mcpSrv := fmcp.NewMCPServer(service.NewContentService(st, logger), versionString(), logger)

			switch cfg.MCP.Transport {
			case "stdio":
				return mcpSrv.ServeStdio()
			case "http":
				return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", cfg.MCP.Port))
			default:
				return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", cfg.MCP.Transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}
