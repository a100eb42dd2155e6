// Command mcp-sse-client drives the initialize / tools/call handshake
// against an mcp-sse-server instance over the SSE transport.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/kosz78/mcp-core/client"
	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport/sse"
	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	root := &cobra.Command{
		Use:   "mcp-sse-client",
		Short: "Drive an MCP SSE server through initialize and tools/call",
		RunE:  run,
	}
	root.Flags().StringVar(&serverURL, "url", "http://localhost:8080/sse", "server's GET /sse URL")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-sse-client: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	t := sse.NewClientTransport(serverURL, http.Header{})
	c := client.NewBuilder(t, jsonrpc.ProtocolVersion20250326, jsonrpc.ClientInfo{
		Name:    "mcp-sse-client",
		Version: "1.0.0",
	}).Build()

	ctx := context.Background()
	if err := c.Open(ctx); err != nil {
		return err
	}
	defer c.Close()

	info, err := c.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("connected to %s v%s\n", info.Name, info.Version)

	result, err := c.CallTool(ctx, "echo", map[string]any{"message": "hello over sse"})
	if err != nil {
		return fmt.Errorf("tools/call echo: %w", err)
	}
	for _, content := range result.Content {
		fmt.Println(content.Text)
	}
	return nil
}
