// Package ledger is a file-backed token ledger: the billing collaborator
// for single-user deployments where the daemon accounts for its own
// generation budget instead of calling a remote billing service.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/voxelway/forgelink/internal/gate"
)

// ErrInsufficientTokens is returned by Reserve when the balance cannot
// cover the requested amount.
var ErrInsufficientTokens = errors.New("insufficient tokens")

type state struct {
	Balance int `json:"balance"`
}

// Ledger implements gate.Billing against a JSON state file.
type Ledger struct {
	path string

	mu sync.Mutex
}

// Open loads the ledger at path, creating it with the initial balance when
// it does not exist yet.
func Open(path string, initial int) (*Ledger, error) {
	if initial < 0 {
		return nil, fmt.Errorf("initial balance must be non-negative, got %d", initial)
	}

	l := &Ledger{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := l.write(state{Balance: initial}); err != nil {
			return nil, err
		}
		return l, nil
	}
	if _, err := l.read(); err != nil {
		return nil, err
	}
	return l, nil
}

// Balance returns the current token balance.
func (l *Ledger) Balance() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.read()
	if err != nil {
		return 0, err
	}
	return st.Balance, nil
}

// Reserve debits tokens and returns a receipt for a later refund.
func (l *Ledger) Reserve(ctx context.Context, tokens int) (gate.Receipt, error) {
	if tokens <= 0 {
		return gate.Receipt{}, fmt.Errorf("reserve amount must be positive, got %d", tokens)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.read()
	if err != nil {
		return gate.Receipt{}, err
	}
	if st.Balance < tokens {
		return gate.Receipt{}, fmt.Errorf("balance %d, need %d: %w", st.Balance, tokens, ErrInsufficientTokens)
	}

	st.Balance -= tokens
	if err := l.write(st); err != nil {
		return gate.Receipt{}, err
	}
	return gate.Receipt{ID: uuid.NewString(), Tokens: tokens}, nil
}

// Refund credits a reservation back.
func (l *Ledger) Refund(ctx context.Context, receipt gate.Receipt) error {
	if receipt.Tokens <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.read()
	if err != nil {
		return err
	}
	st.Balance += receipt.Tokens
	return l.write(st)
}

func (l *Ledger) read() (state, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return state{}, fmt.Errorf("reading ledger: %w", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return state{}, fmt.Errorf("parsing ledger %s: %w", l.path, err)
	}
	return st, nil
}

func (l *Ledger) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.path, data, 0600); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}
