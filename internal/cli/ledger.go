package cli

import (
	"context"
	"fmt"

	"github.com/roach88/landledger/internal/assets"
	"github.com/roach88/landledger/internal/config"
	"github.com/roach88/landledger/internal/engine"
	"github.com/roach88/landledger/internal/store"
)

// ledgerSet is an engine with the reference assets it settles against.
type ledgerSet struct {
	engine *engine.Engine
	token  *assets.Token
	deed   *assets.Deed
}

// engineConfig assembles the engine configuration for cfg with land bound
// as the deed collaborator. The token is always the reference token bound
// to the engine's address.
func engineConfig(cfg config.Config, token *assets.Token, land engine.NonFungibleToken) (engine.Config, error) {
	policy, err := cfg.Epochs()
	if err != nil {
		return engine.Config{}, fmt.Errorf("load epochs: %w", err)
	}
	return engine.Config{
		Address:         cfg.Address,
		Owner:           cfg.Owner,
		TokenAddress:    cfg.TokenAddress,
		Token:           token.Bind(cfg.Address),
		LandAddress:     cfg.LandAddress,
		Land:            land,
		InitialLandBid:  cfg.InitialBid,
		AuctionDuration: cfg.AuctionDuration,
		Epochs:          policy,
	}, nil
}

// openLedger builds an engine over st with fresh reference assets.
func openLedger(ctx context.Context, cfg config.Config, st *store.Store, opts ...engine.Option) (*ledgerSet, error) {
	token := assets.NewToken(cfg.TokenAddress)
	deed := assets.NewDeed(cfg.LandAddress)

	ecfg, err := engineConfig(cfg, token, deed.Bind(cfg.Address))
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(ctx, st, ecfg, opts...)
	if err != nil {
		return nil, err
	}
	return &ledgerSet{engine: eng, token: token, deed: deed}, nil
}
