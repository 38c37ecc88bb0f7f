package indexer

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
)

func TestPoolCacheBootstrap(t *testing.T) {
	storage := newFakeStorage()
	storage.omnipool = []chain.OmnipoolAssetEntry{
		{AssetID: 5, HubReserve: uint256.NewInt(1), Shares: uint256.NewInt(1)},
		{AssetID: 0, HubReserve: uint256.NewInt(1), Shares: uint256.NewInt(1)},
	}
	block := testBlock(100, 183, storage)

	cache := NewPoolCache(zap.NewNop())
	ids, ok := cache.OmnipoolAssets(context.Background(), block)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 5}, ids)
}

func TestPoolCachePalletAbsent(t *testing.T) {
	storage := newFakeStorage()
	storage.pallets = map[string]bool{}
	block := testBlock(1, 100, storage)

	cache := NewPoolCache(zap.NewNop())
	_, ok := cache.OmnipoolAssets(context.Background(), block)
	assert.False(t, ok)
	_, ok = cache.XYKPools(context.Background(), block)
	assert.False(t, ok)
	_, ok = cache.StableswapPools(context.Background(), block)
	assert.False(t, ok)
}

func TestPoolCacheBootstrapFailureIsRetried(t *testing.T) {
	storage := newFakeStorage()
	storage.failOmnipool = true
	block := testBlock(100, 183, storage)

	cache := NewPoolCache(zap.NewNop())
	_, ok := cache.OmnipoolAssets(context.Background(), block)
	assert.False(t, ok)

	// The failure did not poison the cache; the next access scans again.
	storage.failOmnipool = false
	storage.omnipool = []chain.OmnipoolAssetEntry{{AssetID: 7, HubReserve: uint256.NewInt(1), Shares: uint256.NewInt(1)}}
	ids, ok := cache.OmnipoolAssets(context.Background(), block)
	require.True(t, ok)
	assert.Equal(t, []uint32{7}, ids)
}

func TestPoolCacheIncrementalEvents(t *testing.T) {
	storage := newFakeStorage()
	storage.omnipool = []chain.OmnipoolAssetEntry{{AssetID: 5, HubReserve: uint256.NewInt(1), Shares: uint256.NewInt(1)}}
	block := testBlock(100, 183, storage)
	ctx := context.Background()

	cache := NewPoolCache(zap.NewNop())
	_, ok := cache.OmnipoolAssets(ctx, block)
	require.True(t, ok)
	_, ok = cache.XYKPools(ctx, block)
	require.True(t, ok)
	_, ok = cache.StableswapPools(ctx, block)
	require.True(t, ok)

	poolAcct := StableswapPoolAccount(9) // any stable 32-byte account works here
	changed := cache.ProcessEvents([]chain.Event{
		{Pallet: "Omnipool", Name: "TokenAdded", Args: []byte(`{"asset": 20}`)},
		{Pallet: "XYK", Name: "PoolCreated", Args: []byte(`{"pool":"` + poolAcct.Hex() + `","assetA":1,"assetB":2}`)},
		{Pallet: "Stableswap", Name: "PoolCreated", Args: []byte(`{"poolId":100,"assets":[10,21],"amplification":100,"fee":200}`)},
	})
	assert.True(t, changed)

	ids, _ := cache.OmnipoolAssets(ctx, block)
	assert.Equal(t, []uint32{5, 20}, ids)

	xyk, _ := cache.XYKPools(ctx, block)
	require.Len(t, xyk, 1)
	assert.Equal(t, uint32(1), xyk[0].AssetA)

	stable, _ := cache.StableswapPools(ctx, block)
	require.Len(t, stable, 1)
	assert.Equal(t, uint64(100), stable[0].InitialAmplification)
	assert.Equal(t, uint64(100), stable[0].FinalAmplification)

	// Removal events shrink the stores.
	changed = cache.ProcessEvents([]chain.Event{
		{Pallet: "Omnipool", Name: "TokenRemoved", Args: []byte(`{"asset": 20}`)},
		{Pallet: "XYK", Name: "PoolDestroyed", Args: []byte(`{"pool":"` + poolAcct.Hex() + `","assetA":1,"assetB":2}`)},
	})
	assert.True(t, changed)
	ids, _ = cache.OmnipoolAssets(ctx, block)
	assert.Equal(t, []uint32{5}, ids)
	xyk, _ = cache.XYKPools(ctx, block)
	assert.Empty(t, xyk)
}

func TestPoolCacheLiquidityEventsDoNotChangeComposition(t *testing.T) {
	cache := NewPoolCache(zap.NewNop())
	changed := cache.ProcessEvents([]chain.Event{
		{Pallet: "Omnipool", Name: "LiquidityAdded", Args: []byte(`{"who":"0xaa","assetId":5,"amount":"1"}`)},
		{Pallet: "Stableswap", Name: "LiquidityAdded", Args: []byte(`{"poolId":100}`)},
	})
	assert.False(t, changed)
}

func TestPoolCacheAmplificationRamp(t *testing.T) {
	storage := newFakeStorage()
	storage.stable = []chain.StableswapPoolEntry{
		{PoolID: 100, Assets: []uint32{10, 21}, InitialAmplification: 100, FinalAmplification: 100},
	}
	block := testBlock(100, 183, storage)
	ctx := context.Background()

	cache := NewPoolCache(zap.NewNop())
	_, ok := cache.StableswapPools(ctx, block)
	require.True(t, ok)

	changed := cache.ProcessEvents([]chain.Event{
		{Pallet: "Stableswap", Name: "AmplificationChanging", Args: []byte(
			`{"poolId":100,"currentAmplification":100,"finalAmplification":500,"startBlock":100,"endBlock":200}`)},
	})
	assert.True(t, changed)

	pools, _ := cache.StableswapPools(ctx, block)
	require.Len(t, pools, 1)
	assert.Equal(t, uint64(100), pools[0].InitialAmplification)
	assert.Equal(t, uint64(500), pools[0].FinalAmplification)
	assert.Equal(t, uint32(200), pools[0].FinalBlock)
}

func TestPoolCacheInvalidateAll(t *testing.T) {
	storage := newFakeStorage()
	storage.omnipool = []chain.OmnipoolAssetEntry{{AssetID: 5, HubReserve: uint256.NewInt(1), Shares: uint256.NewInt(1)}}
	block := testBlock(100, 183, storage)
	ctx := context.Background()

	cache := NewPoolCache(zap.NewNop())
	_, ok := cache.OmnipoolAssets(ctx, block)
	require.True(t, ok)

	// After invalidation the next lookup re-bootstraps and sees new state.
	storage.omnipool = append(storage.omnipool, chain.OmnipoolAssetEntry{AssetID: 9, HubReserve: uint256.NewInt(1), Shares: uint256.NewInt(1)})
	cache.InvalidateAll()

	ids, ok := cache.OmnipoolAssets(ctx, block)
	require.True(t, ok)
	assert.Equal(t, []uint32{5, 9}, ids)
}
