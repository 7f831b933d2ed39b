package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/voxelway/forgelink/internal/daemon"
	"github.com/voxelway/forgelink/internal/ipc"
	"github.com/voxelway/forgelink/internal/mcptool"
)

// ipcSender is the slice of the IPC client the CLI needs; tests substitute
// a fake through connectFn.
type ipcSender interface {
	Send(req *ipc.Request) (*ipc.Response, error)
}

var connectFn = func() (ipcSender, error) {
	nonce, err := daemon.SpawnOrConnect()
	if err != nil {
		return nil, err
	}
	return ipc.NewClient(ipc.SocketPath(), nonce), nil
}

var serveMCPFn = func(ctx context.Context, sender mcptool.Sender) error {
	return mcptool.Serve(ctx, sender)
}

// Run is the main CLI entry point. Returns an exit code.
func Run(args []string) int {
	if handled, code := handleRootFlags(args); handled {
		return code
	}

	if len(args) == 0 {
		printRootHelp(rootStderr)
		return ipc.ExitUsageErr
	}

	switch args[0] {
	case "status":
		return runStatus(args[1:])
	case "commands":
		return runCommands(args[1:])
	case "schema":
		return runSchema(args[1:])
	case "exec":
		return runExec(args[1:])
	case "snapshot":
		return runSnapshot(args[1:])
	case "mcp":
		return runMCP()
	case "daemon":
		return runDaemon(args[1:])
	default:
		fmt.Fprintf(rootStderr, "forgelink: unknown command: %s\n\n", args[0])
		printRootHelp(rootStderr)
		return ipc.ExitUsageErr
	}
}

func runStatus(args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(rootStderr, "forgelink: status takes no arguments")
		return ipc.ExitUsageErr
	}
	return sendAndPrint(&ipc.Request{Type: "status"})
}

func runCommands(args []string) int {
	req := &ipc.Request{Type: "commands"}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--json":
			req.Verbose = true
		case arg == "-c" || arg == "--category":
			if i+1 >= len(args) {
				fmt.Fprintln(rootStderr, "forgelink: missing value for --category")
				return ipc.ExitUsageErr
			}
			i++
			req.Category = args[i]
		case strings.HasPrefix(arg, "--category="):
			req.Category = strings.TrimPrefix(arg, "--category=")
		case arg == "-h" || arg == "--help":
			printCommandsHelp(rootStdout)
			return ipc.ExitOK
		default:
			fmt.Fprintf(rootStderr, "forgelink: unsupported flag for commands: %s\n", arg)
			return ipc.ExitUsageErr
		}
	}
	return sendAndPrint(req)
}

func runSchema(args []string) int {
	if len(args) != 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(rootStderr, "forgelink: usage: forgelink schema <command>")
		return ipc.ExitUsageErr
	}
	return sendAndPrint(&ipc.Request{Type: "schema", Command: args[0]})
}

func runExec(args []string) int {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(rootStderr, "forgelink: usage: forgelink exec <command> [FLAGS]")
		return ipc.ExitUsageErr
	}
	command := args[0]

	parsed, err := parseExecArgs(args[1:], os.Stdin, stdinIsTTY(os.Stdin))
	if err != nil {
		fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		return ipc.ExitUsageErr
	}
	if parsed.help {
		return sendAndPrint(&ipc.Request{Type: "schema", Command: command})
	}

	payload, err := json.Marshal(parsed.payload)
	if err != nil {
		if !parsed.quiet {
			fmt.Fprintf(rootStderr, "forgelink: invalid arguments: %v\n", err)
		}
		return ipc.ExitUsageErr
	}

	client, err := connectFn()
	if err != nil {
		if !parsed.quiet {
			fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		}
		return ipc.ExitInternal
	}

	resp, err := client.Send(&ipc.Request{
		Type:    "execute",
		Command: command,
		Args:    payload,
		Cache:   parsed.cacheTTL,
		Verbose: parsed.verbose,
	})
	if err != nil {
		if !parsed.quiet {
			fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		}
		return ipc.ExitInternal
	}
	writeExecResponse(resp, parsed.quiet, rootStdout, rootStderr)
	return resp.ExitCode
}

func runSnapshot(args []string) int {
	if len(args) != 1 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(rootStderr, "forgelink: usage: forgelink snapshot <channel>")
		return ipc.ExitUsageErr
	}
	return sendAndPrint(&ipc.Request{Type: "snapshot", Channel: args[0]})
}

func runMCP() int {
	client, err := connectFn()
	if err != nil {
		fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		return ipc.ExitInternal
	}
	if err := serveMCPFn(context.Background(), client); err != nil {
		fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		return ipc.ExitInternal
	}
	return ipc.ExitOK
}

func runDaemon(args []string) int {
	if len(args) != 1 || args[0] != "stop" {
		fmt.Fprintln(rootStderr, "forgelink: usage: forgelink daemon stop")
		return ipc.ExitUsageErr
	}
	return sendAndPrint(&ipc.Request{Type: "shutdown"})
}

func sendAndPrint(req *ipc.Request) int {
	client, err := connectFn()
	if err != nil {
		fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		return ipc.ExitInternal
	}

	resp, err := client.Send(req)
	if err != nil {
		fmt.Fprintf(rootStderr, "forgelink: %v\n", err)
		return ipc.ExitInternal
	}
	if resp.Stderr != "" {
		fmt.Fprintln(rootStderr, resp.Stderr)
	}
	rootStdout.Write(resp.Content) //nolint:errcheck
	return resp.ExitCode
}

func writeExecResponse(resp *ipc.Response, quiet bool, stdout, stderr io.Writer) {
	if resp == nil {
		return
	}
	if !quiet && resp.Stderr != "" {
		fmt.Fprintln(stderr, resp.Stderr)
	}
	if resp.ExitCode == ipc.ExitOK {
		stdout.Write(resp.Content) //nolint:errcheck
		return
	}
	if !quiet && len(resp.Content) > 0 {
		stderr.Write(resp.Content) //nolint:errcheck
	}
}

func stdinIsTTY(file *os.File) bool {
	info, err := file.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&fs.ModeCharDevice != 0
}

func printCommandsHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: forgelink commands [FLAGS]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "List the commands the engine manifest exposes.")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	fmt.Fprintln(out, "  --category, -c CAT    Only list commands in the given category")
	fmt.Fprintln(out, "  --json                Emit full command definitions as JSON")
	fmt.Fprintln(out, "  --help, -h            Show this help output")
}
