// Command mcp-echo-server is a minimal stdio MCP server exercising the
// echo-over-stdio and timeout scenarios from spec.md §8.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kosz78/mcp-core/internal/config"
	"github.com/kosz78/mcp-core/jsonrpc"
	"github.com/kosz78/mcp-core/server"
	"github.com/kosz78/mcp-core/tool"
	"github.com/kosz78/mcp-core/transport/stdio"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	auditLogPath string
)

func main() {
	root := &cobra.Command{
		Use:   "mcp-echo-server",
		Short: "Stdio MCP server exposing echo and slow-echo tools",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a TOML server manifest (optional)")
	root.Flags().StringVar(&auditLogPath, "audit-log", "", "path to an append-only JSONL tool-call audit log (optional)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-echo-server: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	name, version := "mcp-echo-server", "1.0.0"
	versions := []jsonrpc.ProtocolVersion{jsonrpc.ProtocolVersion20250326, jsonrpc.ProtocolVersion20241105}

	var manifest *config.Manifest
	if configPath != "" {
		m, err := config.LoadManifest(configPath)
		if err != nil {
			return err
		}
		manifest = m
		name, version = manifest.Name, manifest.Version
		versions = manifest.Versions()
		if auditLogPath == "" {
			auditLogPath = manifest.AuditLogPath
		}
	}

	builder := server.NewBuilder(name, version, versions...)
	if auditLogPath != "" {
		builder = builder.WithAuditLog(auditLogPath)
	}
	if manifest != nil {
		builder = builder.WithDisabledTools(manifest.DisabledTools)
	}

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

	builder.RegisterTool(tool.Descriptor{
		Tool: jsonrpc.Tool{
			Name:        "slow-echo",
			Description: "Echoes back the given message after a 5s delay; useful for exercising client timeouts.",
			InputSchema: tool.Schema(tool.Param{Name: "message", Type: "string", Description: "text to echo back"}),
		},
		Handler: func(ctx context.Context, args map[string]any) (jsonrpc.ToolResponseContent, error) {
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return jsonrpc.ToolResponseContent{}, ctx.Err()
			}
			message, _ := args["message"].(string)
			return tool.TextContent(message), nil
		},
	})

	builder.RegisterTool(tool.Descriptor{
		Tool: jsonrpc.Tool{
			Name: "env-probe",
			Description: "Confirms receipt of a client-injected secret without echoing it back; " +
				"pair with a client secure-value map entry for \"api_key\" to exercise an Env-backed " +
				"substitution end-to-end over the wire.",
			InputSchema: tool.Schema(tool.Param{Name: "api_key", Type: "string", Hidden: true}),
		},
		Handler: func(ctx context.Context, args map[string]any) (jsonrpc.ToolResponseContent, error) {
			apiKey, _ := args["api_key"].(string)
			if apiKey == "" {
				return jsonrpc.ToolResponseContent{}, fmt.Errorf("env-probe: no api_key argument received")
			}
			return tool.TextContent(fmt.Sprintf("received %d-byte secret value", len(apiKey))), nil
		},
	})

	srv, err := builder.Build()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s started\n", srv.Summary(0, 0))

	t := stdio.New(os.Stdin, os.Stdout)
	serveErr := srv.Serve(context.Background(), t)

	calls, bytes := srv.AuditStats()
	fmt.Fprintf(os.Stderr, "%s stopped\n", srv.Summary(calls, bytes))

	return serveErr
}
