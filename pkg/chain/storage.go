package chain

import (
	"context"

	"github.com/holiman/uint256"
)

// Tradability bitflags on an Omnipool asset entry.
const (
	TradableSell uint8 = 1 << iota
	TradableBuy
	TradableAddLiquidity
	TradableRemoveLiquidity
)

// OmnipoolAssetEntry is the decoded Omnipool.Assets storage value for one
// asset. Reserve is not part of the entry; it lives in the sovereign
// account's token balance and is read separately.
type OmnipoolAssetEntry struct {
	AssetID        uint32
	HubReserve     *uint256.Int
	Shares         *uint256.Int
	ProtocolShares *uint256.Int
	Cap            *uint256.Int
	Tradable       uint8
}

// XYKPoolEntry is one XYK.PoolAssets storage entry.
type XYKPoolEntry struct {
	PoolAccount AccountID
	AssetA      uint32
	AssetB      uint32
}

// StableswapPoolEntry is one Stableswap.Pools storage entry. The share token
// of the pool carries the same id as the pool itself.
type StableswapPoolEntry struct {
	PoolID               uint32
	Assets               []uint32
	InitialAmplification uint64
	FinalAmplification   uint64
	InitialBlock         uint32
	FinalBlock           uint32
	Fee                  uint32
}

// RegistryAsset is one AssetRegistry entry. Symbol and Name are raw byte
// strings as stored on chain; Decimals is nil when the runtime version
// predates the field.
type RegistryAsset struct {
	AssetID  uint32
	Symbol   []byte
	Name     []byte
	Decimals *uint8
}

// TokenAccountKey addresses one Tokens.Accounts entry.
type TokenAccountKey struct {
	Account AccountID
	AssetID uint32
}

// Storage is the per-block chain state view implemented by the generated
// schema bindings. Enumerations page internally; TokenAccounts batches all
// requested keys into as few round-trips as the gateway allows. Every method
// is version-guarded on the binding side: calls against a block where the
// pallet or field does not exist yet return an error, which the core treats
// as "absent at this block".
type Storage interface {
	HasPallet(ctx context.Context, pallet string) (bool, error)
	OmnipoolAssets(ctx context.Context) ([]OmnipoolAssetEntry, error)
	OmnipoolAssetStates(ctx context.Context, assetIDs []uint32) (map[uint32]OmnipoolAssetEntry, error)
	XYKPools(ctx context.Context) ([]XYKPoolEntry, error)
	StableswapPools(ctx context.Context) ([]StableswapPoolEntry, error)
	RegistryAssets(ctx context.Context) ([]RegistryAsset, error)
	TokenAccounts(ctx context.Context, keys []TokenAccountKey) (map[TokenAccountKey]*uint256.Int, error)
}
