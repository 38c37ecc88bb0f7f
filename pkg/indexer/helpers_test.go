package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/hydration-network/hydrax/pkg/chain"
)

var errStorageDown = errors.New("storage unavailable")

// fakeStorage is an in-memory chain.Storage for pipeline-level tests.
type fakeStorage struct {
	pallets  map[string]bool
	omnipool []chain.OmnipoolAssetEntry
	xyk      []chain.XYKPoolEntry
	stable   []chain.StableswapPoolEntry
	registry []chain.RegistryAsset
	balances map[chain.TokenAccountKey]*uint256.Int

	failOmnipool bool
	failTokens   bool
	failRegistry bool

	registryScans int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		pallets:  map[string]bool{"Omnipool": true, "XYK": true, "Stableswap": true},
		balances: map[chain.TokenAccountKey]*uint256.Int{},
	}
}

func (f *fakeStorage) HasPallet(_ context.Context, pallet string) (bool, error) {
	return f.pallets[pallet], nil
}

func (f *fakeStorage) OmnipoolAssets(_ context.Context) ([]chain.OmnipoolAssetEntry, error) {
	if f.failOmnipool {
		return nil, errStorageDown
	}
	return f.omnipool, nil
}

func (f *fakeStorage) OmnipoolAssetStates(_ context.Context, assetIDs []uint32) (map[uint32]chain.OmnipoolAssetEntry, error) {
	if f.failOmnipool {
		return nil, errStorageDown
	}
	out := map[uint32]chain.OmnipoolAssetEntry{}
	for _, entry := range f.omnipool {
		for _, id := range assetIDs {
			if entry.AssetID == id {
				out[id] = entry
			}
		}
	}
	return out, nil
}

func (f *fakeStorage) XYKPools(_ context.Context) ([]chain.XYKPoolEntry, error) {
	return f.xyk, nil
}

func (f *fakeStorage) StableswapPools(_ context.Context) ([]chain.StableswapPoolEntry, error) {
	return f.stable, nil
}

func (f *fakeStorage) RegistryAssets(_ context.Context) ([]chain.RegistryAsset, error) {
	if f.failRegistry {
		return nil, errStorageDown
	}
	f.registryScans++
	return f.registry, nil
}

func (f *fakeStorage) TokenAccounts(_ context.Context, keys []chain.TokenAccountKey) (map[chain.TokenAccountKey]*uint256.Int, error) {
	if f.failTokens {
		return nil, errStorageDown
	}
	out := map[chain.TokenAccountKey]*uint256.Int{}
	for _, key := range keys {
		if bal, ok := f.balances[key]; ok {
			out[key] = bal
		}
	}
	return out, nil
}

func (f *fakeStorage) setBalance(account chain.AccountID, asset uint32, value string) {
	f.balances[chain.TokenAccountKey{Account: account, AssetID: asset}] = uint256.MustFromDecimal(value)
}

func testBlock(height uint32, spec uint32, storage chain.Storage) *chain.Block {
	return &chain.Block{
		Height:      height,
		Hash:        fmt.Sprintf("0x%08x", height),
		ParentHash:  fmt.Sprintf("0x%08x", height-1),
		Timestamp:   time.Unix(1_700_000_000+int64(height)*12, 0).UTC(),
		SpecVersion: spec,
		Storage:     storage,
	}
}
