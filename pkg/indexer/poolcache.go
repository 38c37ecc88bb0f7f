package indexer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
)

// PoolCache tracks which assets and pools exist at the chain head being
// processed. Each of the three stores bootstraps lazily with a full storage
// scan, then stays current through lifecycle events. Runtime upgrades and
// pool-affecting sudo writes reset everything to uninitialized.
type PoolCache struct {
	logger *zap.Logger

	omnipoolAssets map[uint32]struct{}
	omnipoolReady  bool

	xykPools map[chain.AccountID]chain.XYKPoolEntry
	xykReady bool

	stablePools map[uint32]chain.StableswapPoolEntry
	stableReady bool
}

func NewPoolCache(logger *zap.Logger) *PoolCache {
	return &PoolCache{logger: logger.Named("poolcache")}
}

// InvalidateAll resets every store to uninitialized. The next lookup
// re-bootstraps from storage.
func (c *PoolCache) InvalidateAll() {
	c.omnipoolReady = false
	c.omnipoolAssets = nil
	c.xykReady = false
	c.xykPools = nil
	c.stableReady = false
	c.stablePools = nil
}

// OmnipoolAssets returns the asset ids currently in the Omnipool, sorted.
// The second return is false when the pallet is absent at this block or the
// bootstrap scan failed.
func (c *PoolCache) OmnipoolAssets(ctx context.Context, block *chain.Block) ([]uint32, bool) {
	if !c.omnipoolReady {
		present, err := block.Storage.HasPallet(ctx, "Omnipool")
		if err != nil || !present {
			if err != nil {
				c.logger.Warn("omnipool pallet probe failed", zap.Uint32("height", block.Height), zap.Error(err))
			}
			return nil, false
		}
		entries, err := block.Storage.OmnipoolAssets(ctx)
		if err != nil {
			c.logger.Warn("omnipool bootstrap scan failed", zap.Uint32("height", block.Height), zap.Error(err))
			return nil, false
		}
		c.omnipoolAssets = make(map[uint32]struct{}, len(entries))
		for _, e := range entries {
			c.omnipoolAssets[e.AssetID] = struct{}{}
		}
		c.omnipoolReady = true
		c.logger.Info("omnipool composition bootstrapped",
			zap.Uint32("height", block.Height), zap.Int("assets", len(entries)))
	}

	ids := make([]uint32, 0, len(c.omnipoolAssets))
	for id := range c.omnipoolAssets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, true
}

// XYKPools returns every known XYK pool, sorted by pool account.
func (c *PoolCache) XYKPools(ctx context.Context, block *chain.Block) ([]chain.XYKPoolEntry, bool) {
	if !c.xykReady {
		present, err := block.Storage.HasPallet(ctx, "XYK")
		if err != nil || !present {
			if err != nil {
				c.logger.Warn("xyk pallet probe failed", zap.Uint32("height", block.Height), zap.Error(err))
			}
			return nil, false
		}
		entries, err := block.Storage.XYKPools(ctx)
		if err != nil {
			c.logger.Warn("xyk bootstrap scan failed", zap.Uint32("height", block.Height), zap.Error(err))
			return nil, false
		}
		c.xykPools = make(map[chain.AccountID]chain.XYKPoolEntry, len(entries))
		for _, e := range entries {
			c.xykPools[e.PoolAccount] = e
		}
		c.xykReady = true
		c.logger.Info("xyk composition bootstrapped",
			zap.Uint32("height", block.Height), zap.Int("pools", len(entries)))
	}

	pools := make([]chain.XYKPoolEntry, 0, len(c.xykPools))
	for _, e := range c.xykPools {
		pools = append(pools, e)
	}
	sort.Slice(pools, func(i, j int) bool {
		return pools[i].PoolAccount.Hex() < pools[j].PoolAccount.Hex()
	})
	return pools, true
}

// StableswapPools returns every known Stableswap pool, sorted by pool id.
func (c *PoolCache) StableswapPools(ctx context.Context, block *chain.Block) ([]chain.StableswapPoolEntry, bool) {
	if !c.stableReady {
		present, err := block.Storage.HasPallet(ctx, "Stableswap")
		if err != nil || !present {
			if err != nil {
				c.logger.Warn("stableswap pallet probe failed", zap.Uint32("height", block.Height), zap.Error(err))
			}
			return nil, false
		}
		entries, err := block.Storage.StableswapPools(ctx)
		if err != nil {
			c.logger.Warn("stableswap bootstrap scan failed", zap.Uint32("height", block.Height), zap.Error(err))
			return nil, false
		}
		c.stablePools = make(map[uint32]chain.StableswapPoolEntry, len(entries))
		for _, e := range entries {
			c.stablePools[e.PoolID] = e
		}
		c.stableReady = true
		c.logger.Info("stableswap composition bootstrapped",
			zap.Uint32("height", block.Height), zap.Int("pools", len(entries)))
	}

	pools := make([]chain.StableswapPoolEntry, 0, len(c.stablePools))
	for _, e := range c.stablePools {
		pools = append(pools, e)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].PoolID < pools[j].PoolID })
	return pools, true
}

type tokenEventArgs struct {
	Asset   *uint32 `json:"asset"`
	AssetID *uint32 `json:"assetId"`
}

func (a tokenEventArgs) id() (uint32, bool) {
	if a.Asset != nil {
		return *a.Asset, true
	}
	if a.AssetID != nil {
		return *a.AssetID, true
	}
	return 0, false
}

type xykPoolEventArgs struct {
	Pool   string `json:"pool"`
	AssetA uint32 `json:"assetA"`
	AssetB uint32 `json:"assetB"`
}

type stablePoolCreatedArgs struct {
	PoolID        uint32   `json:"poolId"`
	Assets        []uint32 `json:"assets"`
	Amplification uint64   `json:"amplification"`
	Fee           uint32   `json:"fee"`
}

type ampChangingArgs struct {
	PoolID               uint32 `json:"poolId"`
	CurrentAmplification uint64 `json:"currentAmplification"`
	FinalAmplification   uint64 `json:"finalAmplification"`
	StartBlock           uint32 `json:"startBlock"`
	EndBlock             uint32 `json:"endBlock"`
}

// ProcessEvents applies pool lifecycle events to the bootstrapped stores and
// reports whether pool composition (or a pool parameter) changed in this
// block. Must run before any state read for the block. Liquidity events do
// not change composition and are ignored here.
func (c *PoolCache) ProcessEvents(events []chain.Event) bool {
	changed := false
	for _, ev := range events {
		switch {
		case ev.Is("Omnipool", "TokenAdded"):
			changed = true
			var args tokenEventArgs
			if err := json.Unmarshal(ev.Args, &args); err != nil {
				c.logger.Warn("undecodable Omnipool.TokenAdded", zap.Error(err))
				continue
			}
			if id, ok := args.id(); ok && c.omnipoolReady {
				c.omnipoolAssets[id] = struct{}{}
			}

		case ev.Is("Omnipool", "TokenRemoved"):
			changed = true
			var args tokenEventArgs
			if err := json.Unmarshal(ev.Args, &args); err != nil {
				c.logger.Warn("undecodable Omnipool.TokenRemoved", zap.Error(err))
				continue
			}
			if id, ok := args.id(); ok && c.omnipoolReady {
				delete(c.omnipoolAssets, id)
			}

		case ev.Is("XYK", "PoolCreated"):
			changed = true
			var args xykPoolEventArgs
			if err := json.Unmarshal(ev.Args, &args); err != nil {
				c.logger.Warn("undecodable XYK.PoolCreated", zap.Error(err))
				continue
			}
			acct, err := chain.AccountIDFromHex(args.Pool)
			if err != nil {
				c.logger.Warn("bad XYK pool account", zap.String("pool", args.Pool), zap.Error(err))
				continue
			}
			if c.xykReady {
				c.xykPools[acct] = chain.XYKPoolEntry{PoolAccount: acct, AssetA: args.AssetA, AssetB: args.AssetB}
			}

		case ev.Is("XYK", "PoolDestroyed"):
			changed = true
			var args xykPoolEventArgs
			if err := json.Unmarshal(ev.Args, &args); err != nil {
				c.logger.Warn("undecodable XYK.PoolDestroyed", zap.Error(err))
				continue
			}
			if acct, err := chain.AccountIDFromHex(args.Pool); err == nil && c.xykReady {
				delete(c.xykPools, acct)
			}

		case ev.Is("Stableswap", "PoolCreated"):
			changed = true
			var args stablePoolCreatedArgs
			if err := json.Unmarshal(ev.Args, &args); err != nil {
				c.logger.Warn("undecodable Stableswap.PoolCreated", zap.Error(err))
				continue
			}
			if c.stableReady {
				c.stablePools[args.PoolID] = chain.StableswapPoolEntry{
					PoolID:               args.PoolID,
					Assets:               args.Assets,
					InitialAmplification: args.Amplification,
					FinalAmplification:   args.Amplification,
					Fee:                  args.Fee,
				}
			}

		case ev.Is("Stableswap", "AmplificationChanging"):
			// A new ramp moves the curve, so the block cannot carry forward.
			changed = true
			var args ampChangingArgs
			if err := json.Unmarshal(ev.Args, &args); err != nil {
				c.logger.Warn("undecodable Stableswap.AmplificationChanging", zap.Error(err))
				continue
			}
			if c.stableReady {
				if pool, ok := c.stablePools[args.PoolID]; ok {
					pool.InitialAmplification = args.CurrentAmplification
					pool.FinalAmplification = args.FinalAmplification
					pool.InitialBlock = args.StartBlock
					pool.FinalBlock = args.EndBlock
					c.stablePools[args.PoolID] = pool
				}
			}
		}
	}
	return changed
}
