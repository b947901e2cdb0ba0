package assets

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ledger"
)

type allowanceKey struct {
	owner, spender ledger.Address
}

// Token is an in-memory fungible token.
//
// Thread-safety: all methods are safe for concurrent use.
type Token struct {
	mu         sync.Mutex
	address    ledger.Address
	balances   map[ledger.Address]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
	supply     decimal.Decimal
}

// NewToken creates an empty token living at address.
func NewToken(address ledger.Address) *Token {
	return &Token{
		address:    address,
		balances:   map[ledger.Address]decimal.Decimal{},
		allowances: map[allowanceKey]decimal.Decimal{},
	}
}

// Address returns the token's own address.
func (t *Token) Address() ledger.Address { return t.address }

// Mint creates amount new units owned by to.
func (t *Token) Mint(to ledger.Address, amount decimal.Decimal) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = t.balances[to].Add(amount)
	t.supply = t.supply.Add(amount)
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (t *Token) Approve(owner, spender ledger.Address, amount decimal.Decimal) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[allowanceKey{owner, spender}] = amount
	return nil
}

// BalanceOf returns addr's balance.
func (t *Token) BalanceOf(addr ledger.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[addr]
}

// Allowance returns how much spender may still move out of owner's balance.
func (t *Token) Allowance(owner, spender ledger.Address) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[allowanceKey{owner, spender}]
}

// TotalSupply returns the sum of all minted units.
func (t *Token) TotalSupply() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supply
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to ledger.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// allowance.
func (t *Token) TransferFrom(spender, from, to ledger.Address, amount decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := allowanceKey{from, spender}
	if t.allowances[key].LessThan(amount) {
		return fmt.Errorf("%s from %s by %s: %w", ledger.FormatAmount(amount), from, spender, ledger.ErrInsufficientAllowance)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.allowances[key] = t.allowances[key].Sub(amount)
	return nil
}

func (t *Token) move(from, to ledger.Address, amount decimal.Decimal) error {
	if err := ledger.ValidateAmount(amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if t.balances[from].LessThan(amount) {
		return fmt.Errorf("%s from %s: %w", ledger.FormatAmount(amount), from, ledger.ErrInsufficientBalance)
	}
	t.balances[from] = t.balances[from].Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

// Checkpoint captures the token's state and returns a function that
// restores it.
func (t *Token) Checkpoint() func() {
	t.mu.Lock()
	balances := maps.Clone(t.balances)
	allowances := maps.Clone(t.allowances)
	supply := t.supply
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.balances = balances
		t.allowances = allowances
		t.supply = supply
	}
}

// Bind returns the view of the token as seen by spender. The engine holds
// such a view for its own address.
func (t *Token) Bind(spender ledger.Address) *BoundToken {
	return &BoundToken{token: t, self: spender}
}

// BoundToken is a Token acting as one principal.
type BoundToken struct {
	token *Token
	self  ledger.Address
}

// TransferFrom moves amount from from to to using the bound principal's
// allowance.
func (b *BoundToken) TransferFrom(_ context.Context, from, to ledger.Address, amount decimal.Decimal) error {
	return b.token.TransferFrom(b.self, from, to, amount)
}

// Transfer moves amount out of the bound principal's balance.
func (b *BoundToken) Transfer(_ context.Context, to ledger.Address, amount decimal.Decimal) error {
	return b.token.Transfer(b.self, to, amount)
}

// BalanceOf returns addr's balance.
func (b *BoundToken) BalanceOf(_ context.Context, addr ledger.Address) (decimal.Decimal, error) {
	return b.token.BalanceOf(addr), nil
}

// Allowance returns owner's allowance to spender.
func (b *BoundToken) Allowance(_ context.Context, owner, spender ledger.Address) (decimal.Decimal, error) {
	return b.token.Allowance(owner, spender), nil
}

// Checkpoint delegates to the underlying token.
func (b *BoundToken) Checkpoint() func() { return b.token.Checkpoint() }
