package indexer

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/stablemath"
)

// OmnipoolAsset is the Omnipool state the resolver needs for one asset:
// the storage entry plus the true free reserve from the sovereign account.
type OmnipoolAsset struct {
	AssetID        uint32
	HubReserve     *uint256.Int
	Reserve        *uint256.Int
	Shares         *uint256.Int
	ProtocolShares *uint256.Int
	Tradable       uint8
}

// XYKPoolState is one XYK pool with its reserves at the block.
type XYKPoolState struct {
	Pool     chain.XYKPoolEntry
	ReserveA *uint256.Int
	ReserveB *uint256.Int
}

// StableswapPoolState is one Stableswap pool with its reserves and the
// amplification interpolated to the block height.
type StableswapPoolState struct {
	Pool          chain.StableswapPoolEntry
	Reserves      []*uint256.Int
	Amplification uint64
}

// PoolState is the full pricing input for one block.
type PoolState struct {
	Omnipool   []OmnipoolAsset
	XYK        []XYKPoolState
	Stableswap []StableswapPoolState
}

// StateReader reads reserves and pool parameters for every cached pool at
// the exact block being processed. The three pool types are read behind a
// single join; key lookups within each type go out as batched requests
// (Omnipool: one for asset states, one for reserve balances).
// Any individual failure drops only the affected pool.
type StateReader struct {
	logger *zap.Logger
	pool   pond.Pool
}

func NewStateReader(logger *zap.Logger) *StateReader {
	return &StateReader{
		logger: logger.Named("reader"),
		pool:   pond.NewPool(8),
	}
}

// Read assembles the PoolState for the block. Pool composition comes from
// the cache; cache.ProcessEvents must already have run for this block.
func (r *StateReader) Read(ctx context.Context, block *chain.Block, cache *PoolCache) *PoolState {
	state := &PoolState{}

	group := r.pool.NewGroup()
	group.Submit(func() { state.Omnipool = r.readOmnipool(ctx, block, cache) })
	group.Submit(func() { state.XYK = r.readXYK(ctx, block, cache) })
	group.Submit(func() { state.Stableswap = r.readStableswap(ctx, block, cache) })
	_ = group.Wait()

	return state
}

func (r *StateReader) readOmnipool(ctx context.Context, block *chain.Block, cache *PoolCache) []OmnipoolAsset {
	ids, ok := cache.OmnipoolAssets(ctx, block)
	if !ok || len(ids) == 0 {
		return nil
	}

	entries, err := block.Storage.OmnipoolAssetStates(ctx, ids)
	if err != nil {
		r.logger.Warn("omnipool asset state read failed",
			zap.Uint32("height", block.Height), zap.Error(err))
		return nil
	}

	// The entry's shares approximate the reserve; the authoritative value is
	// the sovereign account's free balance.
	account := OmnipoolAccount()
	keys := make([]chain.TokenAccountKey, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, chain.TokenAccountKey{Account: account, AssetID: id})
	}
	balances, err := block.Storage.TokenAccounts(ctx, keys)
	if err != nil {
		r.logger.Warn("omnipool reserve batch read failed, falling back to shares",
			zap.Uint32("height", block.Height), zap.Error(err))
		balances = nil
	}

	out := make([]OmnipoolAsset, 0, len(ids))
	for _, id := range ids {
		entry, ok := entries[id]
		if !ok {
			continue
		}
		reserve := entry.Shares
		if balances != nil {
			if bal, ok := balances[chain.TokenAccountKey{Account: account, AssetID: id}]; ok {
				reserve = bal
			}
		}
		if reserve == nil || entry.HubReserve == nil {
			continue
		}
		out = append(out, OmnipoolAsset{
			AssetID:        id,
			HubReserve:     entry.HubReserve,
			Reserve:        reserve,
			Shares:         entry.Shares,
			ProtocolShares: entry.ProtocolShares,
			Tradable:       entry.Tradable,
		})
	}
	return out
}

func (r *StateReader) readXYK(ctx context.Context, block *chain.Block, cache *PoolCache) []XYKPoolState {
	pools, ok := cache.XYKPools(ctx, block)
	if !ok || len(pools) == 0 {
		return nil
	}

	keys := make([]chain.TokenAccountKey, 0, 2*len(pools))
	for _, p := range pools {
		keys = append(keys,
			chain.TokenAccountKey{Account: p.PoolAccount, AssetID: p.AssetA},
			chain.TokenAccountKey{Account: p.PoolAccount, AssetID: p.AssetB})
	}
	balances, err := block.Storage.TokenAccounts(ctx, keys)
	if err != nil {
		r.logger.Warn("xyk reserve batch read failed",
			zap.Uint32("height", block.Height), zap.Error(err))
		return nil
	}

	out := make([]XYKPoolState, 0, len(pools))
	for _, p := range pools {
		ra, okA := balances[chain.TokenAccountKey{Account: p.PoolAccount, AssetID: p.AssetA}]
		rb, okB := balances[chain.TokenAccountKey{Account: p.PoolAccount, AssetID: p.AssetB}]
		if !okA || !okB {
			r.logger.Warn("xyk pool missing reserves, dropped for block",
				zap.Uint32("height", block.Height), zap.String("pool", p.PoolAccount.Hex()))
			continue
		}
		out = append(out, XYKPoolState{Pool: p, ReserveA: ra, ReserveB: rb})
	}
	return out
}

func (r *StateReader) readStableswap(ctx context.Context, block *chain.Block, cache *PoolCache) []StableswapPoolState {
	pools, ok := cache.StableswapPools(ctx, block)
	if !ok || len(pools) == 0 {
		return nil
	}

	var keys []chain.TokenAccountKey
	for _, p := range pools {
		account := StableswapPoolAccount(p.PoolID)
		for _, asset := range p.Assets {
			keys = append(keys, chain.TokenAccountKey{Account: account, AssetID: asset})
		}
	}
	balances, err := block.Storage.TokenAccounts(ctx, keys)
	if err != nil {
		r.logger.Warn("stableswap reserve batch read failed",
			zap.Uint32("height", block.Height), zap.Error(err))
		return nil
	}

	out := make([]StableswapPoolState, 0, len(pools))
	for _, p := range pools {
		account := StableswapPoolAccount(p.PoolID)
		reserves := make([]*uint256.Int, len(p.Assets))
		complete := true
		for i, asset := range p.Assets {
			bal, ok := balances[chain.TokenAccountKey{Account: account, AssetID: asset}]
			if !ok {
				complete = false
				break
			}
			reserves[i] = bal
		}
		if !complete {
			r.logger.Warn("stableswap pool missing reserves, dropped for block",
				zap.Uint32("height", block.Height), zap.Uint32("pool", p.PoolID))
			continue
		}
		out = append(out, StableswapPoolState{
			Pool:     p,
			Reserves: reserves,
			Amplification: stablemath.AmplificationAt(
				p.InitialAmplification, p.FinalAmplification,
				p.InitialBlock, p.FinalBlock, block.Height),
		})
	}
	return out
}
