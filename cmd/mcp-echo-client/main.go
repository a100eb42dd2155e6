// Command mcp-echo-client spawns an MCP stdio server and drives the
// initialize / tools/list / tools/call handshake against it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kosz78/mcp-core/client"
	"github.com/kosz78/mcp-core/internal/config"
	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/transport/stdio"
	"github.com/spf13/cobra"
)

var (
	serverPath      string
	secureValuePath string
	timeout         time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "mcp-echo-client [-- server-args...]",
		Short: "Drive an MCP stdio server through initialize, tools/list, and tools/call",
		Args:  cobra.ArbitraryArgs,
		RunE:  run,
	}
	root.Flags().StringVar(&serverPath, "server", "mcp-echo-server", "path to the MCP server binary to spawn")
	root.Flags().StringVar(&secureValuePath, "secure-values", "", "path to a YAML secure-value map (optional)")
	root.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "per-request timeout")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-echo-client: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	t, err := stdio.NewClient(serverPath, args...)
	if err != nil {
		return err
	}

	builder := client.NewBuilder(t, jsonrpc.ProtocolVersion20250326, jsonrpc.ClientInfo{
		Name:    "mcp-echo-client",
		Version: "1.0.0",
	})

	if secureValuePath != "" {
		values, strict, err := config.LoadSecureValueMap(secureValuePath)
		if err != nil {
			return err
		}
		builder = builder.WithSecureValues(values, strict)
	}

	c := builder.Build()

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

	tools, err := c.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	for _, tl := range tools {
		fmt.Printf("tool: %s - %s\n", tl.Name, tl.Description)
	}

	result, err := c.CallTool(ctx, "echo", map[string]any{"message": "hi"})
	if err != nil {
		return fmt.Errorf("tools/call echo: %w", err)
	}
	printResult("echo", result)

	if _, err := c.Request(ctx, "nope", nil, timeout); err != nil {
		fmt.Printf("request(\"nope\"): %v\n", err)
	}

	slowCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := c.CallTool(slowCtx, "slow-echo", map[string]any{"message": "hi"}); err != nil {
		fmt.Printf("tools/call slow-echo (100ms budget): %v\n", err)
	}

	return nil
}

func printResult(name string, result jsonrpc.CallToolResult) {
	data, _ := json.Marshal(result)
	fmt.Printf("%s result: %s\n", name, data)
}
