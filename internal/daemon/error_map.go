package daemon

import (
	"errors"

	"github.com/voxelway/forgelink/internal/bridge"
	"github.com/voxelway/forgelink/internal/gate"
	"github.com/voxelway/forgelink/internal/ipc"
)

// executeFailure maps a command execution error to an IPC response. Calling
// a command that does not exist is a usage error; everything the engine or
// the gate can refuse at runtime is a command error; the rest is internal.
func executeFailure(err error) *ipc.Response {
	if err == nil {
		return &ipc.Response{ExitCode: ipc.ExitOK}
	}

	switch {
	case errors.Is(err, gate.ErrUnknownCommand):
		return &ipc.Response{ExitCode: ipc.ExitUsageErr, Stderr: err.Error()}
	case errors.Is(err, gate.ErrScopeDenied),
		errors.Is(err, gate.ErrInsufficientBalance):
		return &ipc.Response{ExitCode: ipc.ExitCommandErr, Stderr: err.Error()}
	case errors.Is(err, bridge.ErrNotConnected):
		return &ipc.Response{
			ExitCode: ipc.ExitCommandErr,
			Stderr:   "engine is not connected; make sure the editor is open and the engine endpoint is reachable",
		}
	case errors.Is(err, bridge.ErrConnectionClosed):
		return &ipc.Response{ExitCode: ipc.ExitCommandErr, Stderr: "connection to engine lost while the command was in flight"}
	}

	var timeout *bridge.TimeoutError
	if errors.As(err, &timeout) {
		return &ipc.Response{ExitCode: ipc.ExitCommandErr, Stderr: err.Error()}
	}
	var remote *bridge.RemoteError
	if errors.As(err, &remote) {
		return &ipc.Response{ExitCode: ipc.ExitCommandErr, Stderr: err.Error()}
	}

	return &ipc.Response{ExitCode: ipc.ExitInternal, Stderr: err.Error()}
}
