package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
)

func decimalsPtr(d uint8) *uint8 { return &d }

func TestRegistryFirstScanEmitsAll(t *testing.T) {
	storage := newFakeStorage()
	storage.registry = []chain.RegistryAsset{
		{AssetID: 0, Symbol: []byte("HDX"), Name: []byte("Hydration"), Decimals: decimalsPtr(12)},
		{AssetID: 10, Symbol: []byte("USDT"), Name: []byte("Tether USD"), Decimals: decimalsPtr(6)},
	}

	r := NewRegistry(zap.NewNop(), 7200, 600)
	rows := r.MaybeScan(context.Background(), testBlock(1, 183, storage), false)
	require.Len(t, rows, 2)
	assert.Equal(t, "HDX", rows[0].Symbol)
	assert.Equal(t, uint8(6), rows[1].Decimals)

	d, ok := r.Decimals(10)
	require.True(t, ok)
	assert.Equal(t, uint8(6), d)
	_, ok = r.Decimals(99)
	assert.False(t, ok)
}

func TestRegistryScanInterval(t *testing.T) {
	storage := newFakeStorage()
	storage.registry = []chain.RegistryAsset{{AssetID: 0, Symbol: []byte("HDX")}}
	ctx := context.Background()

	r := NewRegistry(zap.NewNop(), 100, 10)
	r.MaybeScan(ctx, testBlock(1, 183, storage), false)
	assert.Equal(t, 1, storage.registryScans)

	// Not due yet during backfill.
	r.MaybeScan(ctx, testBlock(50, 183, storage), false)
	assert.Equal(t, 1, storage.registryScans)

	r.MaybeScan(ctx, testBlock(101, 183, storage), false)
	assert.Equal(t, 2, storage.registryScans)

	// The live stride is shorter.
	r.MaybeScan(ctx, testBlock(112, 183, storage), true)
	assert.Equal(t, 3, storage.registryScans)
}

func TestRegistryEmitsOnlyChanges(t *testing.T) {
	storage := newFakeStorage()
	storage.registry = []chain.RegistryAsset{
		{AssetID: 0, Symbol: []byte("HDX"), Name: []byte("Hydration"), Decimals: decimalsPtr(12)},
	}
	ctx := context.Background()

	r := NewRegistry(zap.NewNop(), 10, 10)
	rows := r.MaybeScan(ctx, testBlock(1, 183, storage), false)
	require.Len(t, rows, 1)

	// Unchanged metadata emits nothing on the next snapshot.
	rows = r.MaybeScan(ctx, testBlock(11, 183, storage), false)
	assert.Empty(t, rows)

	// A symbol change re-emits the asset.
	storage.registry[0].Symbol = []byte("HDX2")
	rows = r.MaybeScan(ctx, testBlock(21, 183, storage), false)
	require.Len(t, rows, 1)
	assert.Equal(t, "HDX2", rows[0].Symbol)
}

func TestRegistryFallbacksAndDefaults(t *testing.T) {
	storage := newFakeStorage()
	storage.registry = []chain.RegistryAsset{
		{AssetID: 7, Symbol: nil, Name: []byte{0xff, 0xfe}}, // empty symbol, invalid UTF-8 name, no decimals
	}

	r := NewRegistry(zap.NewNop(), 10, 10)
	rows := r.MaybeScan(context.Background(), testBlock(1, 183, storage), false)
	require.Len(t, rows, 1)

	assert.Equal(t, "Asset7", rows[0].Symbol)
	assert.Equal(t, "Asset7", rows[0].Name)
	assert.Equal(t, defaultDecimals, rows[0].Decimals)

	d, ok := r.Decimals(7)
	require.True(t, ok)
	assert.Equal(t, defaultDecimals, d)
}

func TestRegistryScanFailureDefersToNextBlock(t *testing.T) {
	storage := newFakeStorage()
	storage.registry = []chain.RegistryAsset{{AssetID: 0, Symbol: []byte("HDX")}}
	storage.failRegistry = true
	ctx := context.Background()

	r := NewRegistry(zap.NewNop(), 100, 10)
	rows := r.MaybeScan(ctx, testBlock(1, 183, storage), false)
	assert.Empty(t, rows)

	// The very next block retries instead of waiting out the interval.
	storage.failRegistry = false
	rows = r.MaybeScan(ctx, testBlock(2, 183, storage), false)
	require.Len(t, rows, 1)
}
