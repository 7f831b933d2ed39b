// Package mcptool exposes the engine command catalog as MCP tools over
// stdio, so agent runtimes can drive the editor through the daemon.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voxelway/forgelink/internal/bridge"
	"github.com/voxelway/forgelink/internal/ipc"
	"github.com/voxelway/forgelink/internal/manifest"
)

const (
	serverName    = "forgelink"
	serverVersion = "1.0.0"
)

// Sender sends IPC requests to the daemon.
type Sender interface {
	Send(req *ipc.Request) (*ipc.Response, error)
}

var serveStdioFn = func(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// Serve fetches the command catalog from the daemon, registers one MCP tool
// per command plus the status and snapshot helpers, and serves stdio until
// the client disconnects.
func Serve(ctx context.Context, sender Sender) error {
	s, err := buildServer(sender)
	if err != nil {
		return err
	}
	_ = ctx
	return serveStdioFn(s)
}

func buildServer(sender Sender) (*server.MCPServer, error) {
	commands, err := fetchCommands(sender)
	if err != nil {
		return nil, err
	}

	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	for _, cmd := range commands {
		tool := mcp.NewToolWithRawSchema(cmd.Name, toolDescription(cmd), cmd.Parameters)
		s.AddTool(tool, commandHandler(sender, cmd.Name))
	}

	s.AddTool(statusTool(), statusHandler(sender))
	s.AddTool(snapshotTool(), snapshotHandler(sender))

	return s, nil
}

func fetchCommands(sender Sender) ([]manifest.Command, error) {
	resp, err := sender.Send(&ipc.Request{Type: "commands", Verbose: true})
	if err != nil {
		return nil, fmt.Errorf("fetching command catalog: %w", err)
	}
	if resp.ExitCode != ipc.ExitOK {
		return nil, fmt.Errorf("fetching command catalog: %s", resp.Stderr)
	}

	var commands []manifest.Command
	if err := json.Unmarshal(resp.Content, &commands); err != nil {
		return nil, fmt.Errorf("decoding command catalog: %w", err)
	}
	return commands, nil
}

// toolDescription folds the token cost into the description so an agent can
// weigh expensive generative calls before making them.
func toolDescription(cmd manifest.Command) string {
	desc := strings.TrimSpace(cmd.Description)
	if cmd.TokenCost > 0 {
		if desc != "" {
			desc += " "
		}
		desc += fmt.Sprintf("(costs %d tokens)", cmd.TokenCost)
	}
	return desc
}

func commandHandler(sender Sender, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultErrorFromErr("invalid arguments", err), nil
		}

		resp, err := sender.Send(&ipc.Request{
			Type:    "execute",
			Command: name,
			Args:    args,
		})
		if err != nil {
			return nil, fmt.Errorf("daemon unreachable: %w", err)
		}
		if resp.ExitCode != ipc.ExitOK {
			return mcp.NewToolResultError(resp.Stderr), nil
		}
		return mcp.NewToolResultText(string(resp.Content)), nil
	}
}

func statusTool() mcp.Tool {
	return mcp.NewTool(
		"engine_status",
		mcp.WithDescription("Report the engine link state, caller tier, and remaining token balance"),
	)
}

func statusHandler(sender Sender) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := sender.Send(&ipc.Request{Type: "status"})
		if err != nil {
			return nil, fmt.Errorf("daemon unreachable: %w", err)
		}
		if resp.ExitCode != ipc.ExitOK {
			return mcp.NewToolResultError(resp.Stderr), nil
		}
		return mcp.NewToolResultText(string(resp.Content)), nil
	}
}

func snapshotTool() mcp.Tool {
	return mcp.NewTool(
		"engine_snapshot",
		mcp.WithDescription("Return the latest state snapshot the engine pushed for a channel"),
		mcp.WithString("channel",
			mcp.Required(),
			mcp.Description("Push channel to read"),
			mcp.Enum(bridge.Channels()...),
		),
	)
}

func snapshotHandler(sender Sender) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		channel, ok := request.GetArguments()["channel"].(string)
		if !ok || channel == "" {
			return mcp.NewToolResultError("channel is required"), nil
		}

		resp, err := sender.Send(&ipc.Request{Type: "snapshot", Channel: channel})
		if err != nil {
			return nil, fmt.Errorf("daemon unreachable: %w", err)
		}
		if resp.ExitCode != ipc.ExitOK {
			return mcp.NewToolResultError(resp.Stderr), nil
		}
		return mcp.NewToolResultText(string(resp.Content)), nil
	}
}
