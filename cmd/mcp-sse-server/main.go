// Command mcp-sse-server serves the same echo tool as mcp-echo-server but
// over the SSE transport binding, exercising spec.md §8 scenario 6.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/server"
	"github.com/kosz78/mcp-core/tool"
	"github.com/kosz78/mcp-core/transport/sse"
	"github.com/spf13/cobra"
)

var listenAddr string

func main() {
	root := &cobra.Command{
		Use:   "mcp-sse-server",
		Short: "SSE MCP server exposing an echo tool",
		RunE:  run,
	}
	root.Flags().StringVar(&listenAddr, "listen", ":8080", "address to listen on")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-sse-server: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	builder := server.NewBuilder("mcp-sse-server", "1.0.0", jsonrpc.ProtocolVersion20250326)
	builder.RegisterTool(tool.Descriptor{
		Tool: jsonrpc.Tool{
			Name:        "echo",
			Description: "Echoes back the given message.",
			InputSchema: tool.Schema(tool.Param{Name: "message", Type: "string", Description: "text to echo back"}),
		},
		Handler: func(ctx context.Context, args map[string]any) (jsonrpc.ToolResponseContent, error) {
			message, _ := args["message"].(string)
			return tool.TextContent(message), nil
		},
	})

	srv, err := builder.Build()
	if err != nil {
		return err
	}

	handler := sse.NewHandler(func(t *sse.ServerTransport) {
		err := srv.Serve(context.Background(), t)
		calls, bytes := srv.AuditStats()
		fmt.Fprintf(os.Stderr, "session ended: %s\n", srv.Summary(calls, bytes))
		if err != nil {
			fmt.Fprintf(os.Stderr, "mcp-sse-server: session ended: %v\n", err)
		}
	})

	fmt.Fprintf(os.Stderr, "%s listening on %s\n", srv.Summary(0, 0), listenAddr)
	return http.ListenAndServe(listenAddr, handler)
}
