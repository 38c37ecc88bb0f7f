package indexer

import (
	"encoding/binary"
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/hydration-network/hydrax/pkg/chain"
)

// Pool sovereign accounts are derived from Substrate PalletId prefixes, not
// hashed: "modl" + pallet id bytes, padded or suffixed to 32 bytes.
const (
	palletPrefix       = "modl"
	omnipoolPalletID   = "omnipool"
	stableswapPalletID = "stblpool"
)

// poolPallets are the pallets whose storage writes can move prices. A sudo
// set_storage against any of their key prefixes invalidates every cache.
var poolPallets = []string{"Omnipool", "Tokens", "XYK", "Stableswap"}

var (
	initAccounts sync.Once

	omnipoolAccount    chain.AccountID
	poolPalletPrefixes [][16]byte

	stableswapAccounts = xsync.NewMap[uint32, chain.AccountID]()
)

func initDerived() {
	copy(omnipoolAccount[:], palletPrefix+omnipoolPalletID)

	poolPalletPrefixes = make([][16]byte, len(poolPallets))
	for i, pallet := range poolPallets {
		poolPalletPrefixes[i] = twox128([]byte(pallet))
	}
}

// OmnipoolAccount returns the Omnipool sovereign account:
// "modl" || "omnipool" || zero padding.
func OmnipoolAccount() chain.AccountID {
	initAccounts.Do(initDerived)
	return omnipoolAccount
}

// StableswapPoolAccount returns the sovereign sub-account holding pool id's
// reserves: "modl" || "stblpool" || u32-LE(id) || zero padding. Memoized,
// pools are long-lived.
func StableswapPoolAccount(poolID uint32) chain.AccountID {
	initAccounts.Do(initDerived)
	if acct, ok := stableswapAccounts.Load(poolID); ok {
		return acct
	}
	var acct chain.AccountID
	copy(acct[:], palletPrefix+stableswapPalletID)
	binary.LittleEndian.PutUint32(acct[12:16], poolID)
	stableswapAccounts.Store(poolID, acct)
	return acct
}

// PoolPalletPrefixes returns the twox128 storage-key prefixes of every
// pool-affecting pallet.
func PoolPalletPrefixes() [][16]byte {
	initAccounts.Do(initDerived)
	return poolPalletPrefixes
}

// twox128 is the Substrate storage hasher: two 64-bit xxhash passes over the
// same data with seeds 0 and 1, little-endian concatenated.
func twox128(data []byte) [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], xxhash.Checksum64S(data, 0))
	binary.LittleEndian.PutUint64(out[8:16], xxhash.Checksum64S(data, 1))
	return out
}
