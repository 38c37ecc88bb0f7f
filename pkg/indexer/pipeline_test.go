package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hydration-network/hydrax/pkg/chain"
)

func newTestPipeline(logger *zap.Logger) *Pipeline {
	cfg := Config{
		USDTAssetID:          usdtID,
		SnapshotInterval:     7200,
		SnapshotIntervalLive: 600,
		BatchSize:            5000,
		CheckpointID:         "main",
	}
	return NewPipeline(logger, nil, cfg)
}

func pricedStorage() *fakeStorage {
	storage := newFakeStorage()
	storage.omnipool = []chain.OmnipoolAssetEntry{
		{AssetID: usdtID, HubReserve: u("1000000000000"), Shares: u("1000000")},
		{AssetID: hdxID, HubReserve: u("50000000000000"), Shares: u("100000000000000000")},
	}
	storage.registry = []chain.RegistryAsset{
		{AssetID: usdtID, Symbol: []byte("USDT"), Name: []byte("Tether USD"), Decimals: decimalsPtr(6)},
		{AssetID: hdxID, Symbol: []byte("HDX"), Name: []byte("Hydration"), Decimals: decimalsPtr(12)},
	}
	storage.setBalance(OmnipoolAccount(), usdtID, "1000000")
	storage.setBalance(OmnipoolAccount(), hdxID, "100000000000000000")
	return storage
}

func TestPipelineFirstBlockIsFull(t *testing.T) {
	p := newTestPipeline(zap.NewNop())
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}

	require.NoError(t, p.processBlock(context.Background(), testBlock(100, 183, storage), batch))

	require.Len(t, p.writer.blocks, 1)
	require.NotEmpty(t, p.writer.prices)
	require.NotNil(t, p.lastPrices)
	assert.Equal(t, "1.000000000000", priceString(t, p.lastPrices, usdtID))
	assert.Equal(t, "0.000500000000", priceString(t, p.lastPrices, hdxID))
	// The first block also snapshots the registry.
	assert.Len(t, p.writer.assets, 2)
}

func TestPipelineCarryForward(t *testing.T) {
	p := newTestPipeline(zap.NewNop())
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}
	ctx := context.Background()

	require.NoError(t, p.processBlock(ctx, testBlock(100, 183, storage), batch))
	pricesAfterFirst := len(p.writer.prices)

	// No pool-affecting activity: metadata only, snapshot reused.
	require.NoError(t, p.processBlock(ctx, testBlock(101, 183, storage), batch))
	assert.Len(t, p.writer.blocks, 2)
	assert.Len(t, p.writer.prices, pricesAfterFirst)
}

func TestPipelinePoolTransferForcesFullProcessing(t *testing.T) {
	p := newTestPipeline(zap.NewNop())
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}
	ctx := context.Background()

	require.NoError(t, p.processBlock(ctx, testBlock(100, 183, storage), batch))
	pricesAfterFirst := len(p.writer.prices)

	var user chain.AccountID
	user[0] = 0xAA
	block := testBlock(101, 183, storage)
	block.Events = []chain.Event{transferEvent(user, OmnipoolAccount())}

	require.NoError(t, p.processBlock(ctx, block, batch))
	assert.Greater(t, len(p.writer.prices), pricesAfterFirst)
}

func TestPipelineSudoWriteForcesFullProcessing(t *testing.T) {
	p := newTestPipeline(zap.NewNop())
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}
	ctx := context.Background()

	require.NoError(t, p.processBlock(ctx, testBlock(100, 183, storage), batch))
	pricesAfterFirst := len(p.writer.prices)

	block := testBlock(101, 183, storage)
	block.Calls = []chain.Call{setStorageCall(t, true, twox128([]byte("Omnipool")))}

	require.NoError(t, p.processBlock(ctx, block, batch))
	assert.Greater(t, len(p.writer.prices), pricesAfterFirst)
}

func TestPipelineRuntimeUpgrade(t *testing.T) {
	p := newTestPipeline(zap.NewNop())
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}
	ctx := context.Background()

	require.NoError(t, p.processBlock(ctx, testBlock(100, 183, storage), batch))
	require.Empty(t, p.writer.upgrades)

	require.NoError(t, p.processBlock(ctx, testBlock(101, 201, storage), batch))
	require.Len(t, p.writer.upgrades, 1)
	assert.Equal(t, uint32(201), p.writer.upgrades[0].SpecVersion)
	assert.Equal(t, uint32(183), p.writer.upgrades[0].PrevSpecVersion)
	assert.Equal(t, uint32(101), p.writer.upgrades[0].BlockHeight)
}

func TestPipelineParentHashMismatchWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := newTestPipeline(zap.New(core))
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}
	ctx := context.Background()

	require.NoError(t, p.processBlock(ctx, testBlock(100, 183, storage), batch))

	block := testBlock(101, 183, storage)
	block.ParentHash = "0xdeadbeef"
	require.NoError(t, p.processBlock(ctx, block, batch))

	assert.Equal(t, 1, logs.FilterMessage("parent hash mismatch").Len())
}

func TestPipelineSwapVolumesLandInRows(t *testing.T) {
	p := newTestPipeline(zap.NewNop())
	storage := pricedStorage()
	batch := &chain.Batch{FinalizedHead: chain.Head{Height: 1000}}

	block := testBlock(100, 183, storage)
	block.Events = []chain.Event{event("Omnipool", "SellExecuted", `{
		"who": "0xaa", "assetIn": 0, "assetOut": 10,
		"amountIn": "1000000000000000", "amountOut": "15000000"
	}`)}

	require.NoError(t, p.processBlock(context.Background(), block, batch))

	var hdxRow, usdtRow bool
	for _, row := range p.writer.prices {
		switch row.AssetID {
		case hdxID:
			hdxRow = true
			assert.Equal(t, "1000000000000000", row.NativeVolumeSell.String())
		case usdtID:
			usdtRow = true
			assert.Equal(t, "15000000", row.NativeVolumeBuy.String())
			assert.Equal(t, "15.000000000000", row.UsdtVolumeBuy.StringFixed(12))
		}
	}
	assert.True(t, hdxRow)
	assert.True(t, usdtRow)
}
