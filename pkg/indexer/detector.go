package indexer

import (
	"bytes"
	"encoding/hex"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Detector decides whether a block can be carried forward (block metadata
// only, prices unchanged) or needs a full state read. Prices move only when
// pool reserves move, and reserve changes surface as Tokens.Transfer events
// against a pool sovereign account, except for direct sudo storage writes.
//
// Known blind spot: a pallet-level admin call that moves reserves without a
// transfer event and without System.set_storage would be carried forward
// incorrectly. No such call exists on the current runtime.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{logger: logger.Named("detector")}
}

type setStorageArgs struct {
	Items [][2]string `json:"items"`
}

type transferArgs struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HasPoolStorageWrite reports whether any successful System.set_storage call
// in the block writes a key under a pool-affecting pallet prefix.
func (d *Detector) HasPoolStorageWrite(calls []chain.Call) bool {
	prefixes := PoolPalletPrefixes()
	for _, call := range calls {
		if !call.Success || !call.Is("System", "set_storage") {
			continue
		}
		var args setStorageArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			d.logger.Warn("undecodable set_storage call", zap.Error(err))
			continue
		}
		for _, item := range args.Items {
			key, err := hex.DecodeString(strings.TrimPrefix(item[0], "0x"))
			if err != nil || len(key) < 16 {
				continue
			}
			for _, prefix := range prefixes {
				if bytes.Equal(key[:16], prefix[:]) {
					return true
				}
			}
		}
	}
	return false
}

// TouchesPoolAccount reports whether any Tokens.Transfer in the block moves
// funds into or out of a known pool sovereign account.
func (d *Detector) TouchesPoolAccount(events []chain.Event, poolAccounts map[chain.AccountID]struct{}) bool {
	if len(poolAccounts) == 0 {
		return false
	}
	for _, ev := range events {
		if !ev.Is("Tokens", "Transfer") {
			continue
		}
		var args transferArgs
		if err := json.Unmarshal(ev.Args, &args); err != nil {
			d.logger.Warn("undecodable Tokens.Transfer event", zap.Error(err))
			continue
		}
		for _, side := range []string{args.From, args.To} {
			acct, err := chain.AccountIDFromHex(side)
			if err != nil {
				continue
			}
			if _, ok := poolAccounts[acct]; ok {
				return true
			}
		}
	}
	return false
}
