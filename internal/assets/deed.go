package assets

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/roach88/landledger/internal/ledger"
)

// Deed is an in-memory non-fungible land registry: one owner per parcel
// and at most one approved operator per parcel.
//
// Thread-safety: all methods are safe for concurrent use.
type Deed struct {
	mu        sync.Mutex
	address   ledger.Address
	owners    map[ledger.LandID]ledger.Address
	approvals map[ledger.LandID]ledger.Address
}

// NewDeed creates an empty registry living at address.
func NewDeed(address ledger.Address) *Deed {
	return &Deed{
		address:   address,
		owners:    map[ledger.LandID]ledger.Address{},
		approvals: map[ledger.LandID]ledger.Address{},
	}
}

// Address returns the registry's own address.
func (d *Deed) Address() ledger.Address { return d.address }

// OwnerOf returns the holder of id.
func (d *Deed) OwnerOf(id ledger.LandID) (ledger.Address, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	owner, ok := d.owners[id]
	if !ok {
		return "", fmt.Errorf("land %s: %w", id, ledger.ErrNonexistentToken)
	}
	return owner, nil
}

// Approve lets operator transfer id. Only the holder may approve.
func (d *Deed) Approve(caller, operator ledger.Address, id ledger.LandID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	owner, ok := d.owners[id]
	if !ok {
		return fmt.Errorf("approve land %s: %w", id, ledger.ErrNonexistentToken)
	}
	if owner != caller {
		return fmt.Errorf("approve land %s: %w", id, ledger.ErrNotTokenOwner)
	}
	d.approvals[id] = operator
	return nil
}

// Approved returns the operator approved for id, if any.
func (d *Deed) Approved(id ledger.LandID) ledger.Address {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.approvals[id]
}

// MintOrTransfer gives id to to: a new token is minted, an existing one is
// moved from the minter. Only the minter may call it.
func (d *Deed) MintOrTransfer(minter, to ledger.Address, id ledger.LandID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if owner, ok := d.owners[id]; ok && owner != minter {
		return fmt.Errorf("mint land %s: held by %s: %w", id, owner, ledger.ErrNotTokenOwner)
	}
	d.owners[id] = to
	delete(d.approvals, id)
	return nil
}

// TransferFrom moves id from from to to on behalf of operator. The operator
// must be the holder or the approved address. Approval is cleared.
func (d *Deed) TransferFrom(operator, from, to ledger.Address, id ledger.LandID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	owner, ok := d.owners[id]
	if !ok {
		return fmt.Errorf("transfer land %s: %w", id, ledger.ErrNonexistentToken)
	}
	if owner != from {
		return fmt.Errorf("transfer land %s from %s: %w", id, from, ledger.ErrNotTokenOwner)
	}
	if operator != owner && d.approvals[id] != operator {
		return fmt.Errorf("transfer land %s by %s: %w", id, operator, ledger.ErrNotApproved)
	}
	d.owners[id] = to
	delete(d.approvals, id)
	return nil
}

// Checkpoint captures the registry state and returns a function that
// restores it.
func (d *Deed) Checkpoint() func() {
	d.mu.Lock()
	owners := maps.Clone(d.owners)
	approvals := maps.Clone(d.approvals)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.owners = owners
		d.approvals = approvals
	}
}

// Bind returns the view of the registry as seen by operator.
func (d *Deed) Bind(operator ledger.Address) *BoundDeed {
	return &BoundDeed{deed: d, self: operator}
}

// BoundDeed is a Deed acting as one principal.
type BoundDeed struct {
	deed *Deed
	self ledger.Address
}

// MintOrTransfer gives id to to with the bound principal as minter.
func (b *BoundDeed) MintOrTransfer(_ context.Context, to ledger.Address, id ledger.LandID) error {
	return b.deed.MintOrTransfer(b.self, to, id)
}

// OwnerOf returns the holder of id.
func (b *BoundDeed) OwnerOf(_ context.Context, id ledger.LandID) (ledger.Address, error) {
	return b.deed.OwnerOf(id)
}

// IsApproved reports whether the bound principal may transfer id.
func (b *BoundDeed) IsApproved(_ context.Context, id ledger.LandID) (bool, error) {
	if _, err := b.deed.OwnerOf(id); err != nil {
		return false, err
	}
	return b.deed.Approved(id) == b.self, nil
}

// TransferFrom moves id with the bound principal as operator.
func (b *BoundDeed) TransferFrom(_ context.Context, from, to ledger.Address, id ledger.LandID) error {
	return b.deed.TransferFrom(b.self, from, to, id)
}

// Checkpoint delegates to the underlying registry.
func (b *BoundDeed) Checkpoint() func() { return b.deed.Checkpoint() }
