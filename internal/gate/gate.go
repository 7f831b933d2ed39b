// Package gate decides, before anything touches the engine link, whether a
// caller may execute a named command: the command must exist in the
// manifest, the caller's scopes must cover it, and any token cost must be
// reserved with the billing collaborator first.
package gate

import (
	"context"
	"fmt"

	"github.com/voxelway/forgelink/internal/manifest"
)

// Machine-readable refusal codes, surfaced alongside the error message.
const (
	CodeUnknownCommand      = "COMMAND_UNKNOWN"
	CodeScopeDenied         = "SCOPE_DENIED"
	CodeInsufficientBalance = "BALANCE_INSUFFICIENT"
)

// Error is a gate refusal with a machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any gate error carrying the same code, so callers can test
// against the sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrUnknownCommand      = &Error{Code: CodeUnknownCommand, Message: "unknown command"}
	ErrScopeDenied         = &Error{Code: CodeScopeDenied, Message: "scope denied"}
	ErrInsufficientBalance = &Error{Code: CodeInsufficientBalance, Message: "insufficient token balance"}
)

// Entitlements is the caller's identity context, supplied by the deployment
// (config for a local daemon, the platform's auth layer elsewhere).
type Entitlements struct {
	Tier   string
	Scopes []string
}

// HasScope reports whether the caller holds the given scope.
func (e Entitlements) HasScope(scope string) bool {
	for _, s := range e.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Receipt records a token reservation. The zero receipt is returned for
// free commands and refunds as a no-op.
type Receipt struct {
	ID     string
	Tokens int
}

// Billing reserves and refunds tokens. Reserve debits the caller's balance;
// Refund is the compensating action the dispatcher invokes when the engine
// call fails after a successful reservation.
type Billing interface {
	Reserve(ctx context.Context, tokens int) (Receipt, error)
	Refund(ctx context.Context, receipt Receipt) error
}

// Gate authorizes command execution against a read-only manifest.
type Gate struct {
	manifest *manifest.Manifest
	ent      Entitlements
	billing  Billing
}

// New creates a gate. The manifest must already be validated.
func New(m *manifest.Manifest, ent Entitlements, billing Billing) *Gate {
	return &Gate{manifest: m, ent: ent, billing: billing}
}

// Authorize resolves a command and admits or refuses the call. On success
// it returns the command definition and a reservation receipt; the caller
// must refund the receipt if downstream execution fails.
func (g *Gate) Authorize(ctx context.Context, name string) (*manifest.Command, Receipt, error) {
	cmd, ok := g.manifest.Lookup(name)
	if !ok {
		return nil, Receipt{}, &Error{Code: CodeUnknownCommand, Message: fmt.Sprintf("unknown command: %s", name)}
	}

	if !g.ent.HasScope(cmd.RequiredScope) {
		return nil, Receipt{}, &Error{
			Code:    CodeScopeDenied,
			Message: fmt.Sprintf("command %s requires scope %s", name, cmd.RequiredScope),
		}
	}

	if cmd.TokenCost == 0 {
		return cmd, Receipt{}, nil
	}

	receipt, err := g.billing.Reserve(ctx, cmd.TokenCost)
	if err != nil {
		return nil, Receipt{}, &Error{
			Code:    CodeInsufficientBalance,
			Message: fmt.Sprintf("command %s costs %d tokens: %v", name, cmd.TokenCost, err),
		}
	}
	return cmd, receipt, nil
}

// Refund returns reserved tokens after a failed execution. Zero receipts
// are ignored.
func (g *Gate) Refund(ctx context.Context, receipt Receipt) error {
	if receipt.Tokens == 0 {
		return nil
	}
	return g.billing.Refund(ctx, receipt)
}
