package indexer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
)

func setStorageCall(t *testing.T, success bool, keyPrefixes ...[16]byte) chain.Call {
	t.Helper()
	items := ""
	for i, prefix := range keyPrefixes {
		if i > 0 {
			items += ","
		}
		// Prefix plus an arbitrary storage-item suffix.
		items += fmt.Sprintf(`["0x%sdeadbeef","0x01"]`, chainHex(prefix[:]))
	}
	return chain.Call{
		Pallet:  "System",
		Name:    "set_storage",
		Args:    []byte(fmt.Sprintf(`{"items":[%s]}`, items)),
		Success: success,
	}
}

func TestHasPoolStorageWrite(t *testing.T) {
	d := NewDetector(zap.NewNop())

	omnipoolPrefix := twox128([]byte("Omnipool"))
	balancesPrefix := twox128([]byte("Balances"))

	assert.True(t, d.HasPoolStorageWrite([]chain.Call{setStorageCall(t, true, omnipoolPrefix)}))
	assert.False(t, d.HasPoolStorageWrite([]chain.Call{setStorageCall(t, true, balancesPrefix)}))

	// A failed extrinsic wrote nothing.
	assert.False(t, d.HasPoolStorageWrite([]chain.Call{setStorageCall(t, false, omnipoolPrefix)}))

	// Any matching item in a multi-item write is enough.
	assert.True(t, d.HasPoolStorageWrite([]chain.Call{setStorageCall(t, true, balancesPrefix, omnipoolPrefix)}))

	// Other calls are ignored.
	assert.False(t, d.HasPoolStorageWrite([]chain.Call{
		{Pallet: "Balances", Name: "transfer", Args: []byte(`{}`), Success: true},
	}))
}

func TestHasPoolStorageWriteAllPoolPallets(t *testing.T) {
	d := NewDetector(zap.NewNop())
	for _, pallet := range []string{"Omnipool", "Tokens", "XYK", "Stableswap"} {
		prefix := twox128([]byte(pallet))
		assert.True(t, d.HasPoolStorageWrite([]chain.Call{setStorageCall(t, true, prefix)}),
			"write under %s must trigger", pallet)
	}
}

func transferEvent(from, to chain.AccountID) chain.Event {
	return chain.Event{
		Pallet: "Tokens",
		Name:   "Transfer",
		Args:   []byte(fmt.Sprintf(`{"currencyId":5,"from":"%s","to":"%s","amount":"100"}`, from.Hex(), to.Hex())),
	}
}

func TestTouchesPoolAccount(t *testing.T) {
	d := NewDetector(zap.NewNop())

	var user, other chain.AccountID
	user[0] = 0xAA
	other[0] = 0xBB
	pool := OmnipoolAccount()
	accounts := map[chain.AccountID]struct{}{pool: {}}

	assert.True(t, d.TouchesPoolAccount([]chain.Event{transferEvent(user, pool)}, accounts))
	assert.True(t, d.TouchesPoolAccount([]chain.Event{transferEvent(pool, user)}, accounts))
	assert.False(t, d.TouchesPoolAccount([]chain.Event{transferEvent(user, other)}, accounts))
	assert.False(t, d.TouchesPoolAccount(nil, accounts))

	// Non-transfer events never match.
	assert.False(t, d.TouchesPoolAccount([]chain.Event{
		{Pallet: "Tokens", Name: "Deposited", Args: []byte(`{}`)},
	}, accounts))
}

func TestTouchesPoolAccountStableswapSubAccount(t *testing.T) {
	d := NewDetector(zap.NewNop())

	var user chain.AccountID
	user[0] = 0xAA
	pool := StableswapPoolAccount(7)
	accounts := map[chain.AccountID]struct{}{pool: {}}

	assert.True(t, d.TouchesPoolAccount([]chain.Event{transferEvent(user, pool)}, accounts))
	assert.False(t, d.TouchesPoolAccount([]chain.Event{transferEvent(user, StableswapPoolAccount(8))}, accounts))
}
