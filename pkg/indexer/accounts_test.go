package indexer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOmnipoolAccountDerivation(t *testing.T) {
	acct := OmnipoolAccount()

	// "modl" || "omnipool" || zero padding, 32 bytes total.
	assert.Equal(t, []byte("modlomnipool"), acct[:12])
	assert.Equal(t, make([]byte, 20), acct[12:])

	// Deterministic.
	assert.Equal(t, acct, OmnipoolAccount())
}

func TestStableswapPoolAccountDerivation(t *testing.T) {
	acct := StableswapPoolAccount(1)

	assert.Equal(t, []byte("modlstblpool"), acct[:12])
	// u32 little-endian pool id.
	assert.Equal(t, []byte{1, 0, 0, 0}, acct[12:16])
	assert.Equal(t, make([]byte, 16), acct[16:])

	// Deterministic and memoized.
	assert.Equal(t, acct, StableswapPoolAccount(1))
}

func TestDerivedAccountsDistinct(t *testing.T) {
	seen := map[string]bool{OmnipoolAccount().Hex(): true}
	for _, id := range []uint32{0, 1, 2, 100, 0xFFFFFFFF} {
		hex := StableswapPoolAccount(id).Hex()
		assert.False(t, seen[hex], "account collision for pool %d", id)
		seen[hex] = true
	}
}

func TestPoolPalletPrefixes(t *testing.T) {
	prefixes := PoolPalletPrefixes()
	assert.Len(t, prefixes, 4)

	// 16 bytes each, all distinct, stable across calls.
	for i, p := range prefixes {
		for j := i + 1; j < len(prefixes); j++ {
			assert.False(t, bytes.Equal(p[:], prefixes[j][:]))
		}
	}
	assert.Equal(t, prefixes, PoolPalletPrefixes())
}

func TestTwox128KnownVector(t *testing.T) {
	// twox128("System") is a well-known Substrate storage prefix.
	got := twox128([]byte("System"))
	assert.Equal(t, "26aa394eea5630e07c48ae0c9558cef7",
		chainHex(got[:]))
}

func chainHex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, 2*len(b))
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0xf])
	}
	return string(out)
}
