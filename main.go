package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slighter12/appservice-mcp-go/tools"
	"github.com/slighter12/appservice-mcp-go/tools/appservice"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "appservice-mcp",
		Short:         "MCP server guiding Azure App Service deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newToolsCmd(), newCallCmd(), newConfigCmd())
	return root
}

// newRegistry builds the sealed registry served by this binary.
func newRegistry() (*tools.Registry, error) {
	r := tools.NewRegistry()
	if err := appservice.Register(r, appservice.NewProvider()); err != nil {
		return nil, err
	}
	r.Seal()
	return r, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
