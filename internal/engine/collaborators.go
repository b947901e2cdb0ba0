package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/landledger/internal/ledger"
)

// FungibleToken is the payment token as seen by the engine's own address.
type FungibleToken interface {
	// TransferFrom moves amount from from to to using the engine's allowance.
	TransferFrom(ctx context.Context, from, to ledger.Address, amount decimal.Decimal) error

	// Transfer moves amount out of the engine's balance.
	Transfer(ctx context.Context, to ledger.Address, amount decimal.Decimal) error

	BalanceOf(ctx context.Context, addr ledger.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, owner, spender ledger.Address) (decimal.Decimal, error)
}

// NonFungibleToken is the land deed registry as seen by the engine's own
// address.
type NonFungibleToken interface {
	// MintOrTransfer hands the parcel's deed to to.
	MintOrTransfer(ctx context.Context, to ledger.Address, id ledger.LandID) error

	OwnerOf(ctx context.Context, id ledger.LandID) (ledger.Address, error)

	// IsApproved reports whether the engine may transfer id.
	IsApproved(ctx context.Context, id ledger.LandID) (bool, error)

	TransferFrom(ctx context.Context, from, to ledger.Address, id ledger.LandID) error
}

// Checkpointer is implemented by collaborators whose effects can be undone.
// Checkpoint captures the current state and returns a function restoring it.
type Checkpointer interface {
	Checkpoint() func()
}

// Observer receives one callback per journaled operation.
type Observer interface {
	ObserveOperation(op, outcome string, d time.Duration)
	ObserveState(active int, paused bool)
}
