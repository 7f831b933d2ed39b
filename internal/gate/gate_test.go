package gate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/voxelway/forgelink/internal/manifest"
)

type fakeBilling struct {
	reserved []int
	refunded []Receipt
	fail     error
}

func (f *fakeBilling) Reserve(ctx context.Context, tokens int) (Receipt, error) {
	if f.fail != nil {
		return Receipt{}, f.fail
	}
	f.reserved = append(f.reserved, tokens)
	return Receipt{ID: "r1", Tokens: tokens}, nil
}

func (f *fakeBilling) Refund(ctx context.Context, receipt Receipt) error {
	f.refunded = append(f.refunded, receipt)
	return nil
}

func testManifest() *manifest.Manifest {
	params := json.RawMessage(`{"type":"object","properties":{}}`)
	return &manifest.Manifest{
		Version: "1.0",
		Commands: []manifest.Command{
			{Name: "set_transform", Description: "d", Category: manifest.CategoryScene, Parameters: params, TokenCost: 0, RequiredScope: "scene:write"},
			{Name: "generate_model", Description: "d", Category: manifest.CategoryAsset, Parameters: params, TokenCost: 20, RequiredScope: "asset:write"},
		},
	}
}

func TestAuthorizeRejectsUnknownCommand(t *testing.T) {
	g := New(testManifest(), Entitlements{Scopes: []string{"scene:write"}}, &fakeBilling{})

	_, _, err := g.Authorize(context.Background(), "no_such_command")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("Authorize() error = %v, want ErrUnknownCommand", err)
	}
}

func TestAuthorizeRejectsMissingScope(t *testing.T) {
	g := New(testManifest(), Entitlements{Scopes: []string{"scene:read"}}, &fakeBilling{})

	_, _, err := g.Authorize(context.Background(), "set_transform")
	if !errors.Is(err, ErrScopeDenied) {
		t.Fatalf("Authorize() error = %v, want ErrScopeDenied", err)
	}
}

func TestAuthorizeFreeCommandSkipsBilling(t *testing.T) {
	billing := &fakeBilling{}
	g := New(testManifest(), Entitlements{Scopes: []string{"scene:write"}}, billing)

	cmd, receipt, err := g.Authorize(context.Background(), "set_transform")
	if err != nil {
		t.Fatalf("Authorize() error = %v, want nil", err)
	}
	if cmd.Name != "set_transform" {
		t.Fatalf("command = %q, want set_transform", cmd.Name)
	}
	if receipt.Tokens != 0 {
		t.Fatalf("receipt tokens = %d, want 0", receipt.Tokens)
	}
	if len(billing.reserved) != 0 {
		t.Fatalf("billing reserved %v, want no reservations for a free command", billing.reserved)
	}
}

func TestAuthorizeReservesTokensForCostedCommand(t *testing.T) {
	billing := &fakeBilling{}
	g := New(testManifest(), Entitlements{Scopes: []string{"asset:write"}}, billing)

	_, receipt, err := g.Authorize(context.Background(), "generate_model")
	if err != nil {
		t.Fatalf("Authorize() error = %v, want nil", err)
	}
	if receipt.Tokens != 20 || receipt.ID == "" {
		t.Fatalf("receipt = %+v, want 20 tokens with an id", receipt)
	}
	if len(billing.reserved) != 1 || billing.reserved[0] != 20 {
		t.Fatalf("billing reserved %v, want [20]", billing.reserved)
	}
}

func TestAuthorizeRejectsWhenBillingDeclines(t *testing.T) {
	billing := &fakeBilling{fail: errors.New("balance 3, need 20")}
	g := New(testManifest(), Entitlements{Scopes: []string{"asset:write"}}, billing)

	_, _, err := g.Authorize(context.Background(), "generate_model")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Authorize() error = %v, want ErrInsufficientBalance", err)
	}
}

func TestRefundReturnsReservedTokens(t *testing.T) {
	billing := &fakeBilling{}
	g := New(testManifest(), Entitlements{Scopes: []string{"asset:write"}}, billing)

	_, receipt, err := g.Authorize(context.Background(), "generate_model")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Refund(context.Background(), receipt); err != nil {
		t.Fatalf("Refund() error = %v, want nil", err)
	}
	if len(billing.refunded) != 1 || billing.refunded[0].Tokens != 20 {
		t.Fatalf("billing refunded %v, want the 20-token receipt", billing.refunded)
	}
}

func TestRefundIgnoresZeroReceipts(t *testing.T) {
	billing := &fakeBilling{}
	g := New(testManifest(), Entitlements{}, billing)

	if err := g.Refund(context.Background(), Receipt{}); err != nil {
		t.Fatalf("Refund() error = %v, want nil", err)
	}
	if len(billing.refunded) != 0 {
		t.Fatal("zero receipt reached the billing collaborator")
	}
}
