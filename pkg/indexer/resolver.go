package indexer

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/fixed"
	"github.com/hydration-network/hydrax/pkg/stablemath"
)

// maxPropagationRounds bounds the fixpoint. Price chains longer than this
// many hops from the Omnipool stay unpriced for the block.
const maxPropagationRounds = 10

// PriceMap holds one block's canonical snapshot: asset id to USDT price,
// integer-scaled by 1e12.
type PriceMap map[uint32]*uint256.Int

// DecimalsFn resolves an asset's decimals; ok is false for unknown assets.
type DecimalsFn func(assetID uint32) (uint8, bool)

// Resolver derives USDT prices for every reachable asset. Anchoring: USDT is
// 1 by definition; the Omnipool prices everything against LRNA whose USDT
// value comes from USDT's own Omnipool state (or a stablecoin-backed LP
// fallback); XYK and Stableswap pools then propagate prices outward until a
// fixpoint.
type Resolver struct {
	logger      *zap.Logger
	usdtAssetID uint32
}

func NewResolver(logger *zap.Logger, usdtAssetID uint32) *Resolver {
	return &Resolver{logger: logger.Named("resolver"), usdtAssetID: usdtAssetID}
}

// Resolve computes the PriceMap for one block. Unpriceable pools are skipped
// with a warning; only arithmetic overflow (an implementation bug) returns an
// error.
func (r *Resolver) Resolve(state *PoolState, decimals DecimalsFn) (PriceMap, error) {
	prices := PriceMap{r.usdtAssetID: fixed.One()}

	lrnaPrice, err := r.lrnaPrice(state, decimals)
	if err != nil {
		return nil, err
	}
	if lrnaPrice != nil {
		if err := r.priceOmnipool(state, decimals, prices, lrnaPrice); err != nil {
			return nil, err
		}
	}

	for round := 0; round < maxPropagationRounds; round++ {
		added, err := r.propagate(state, decimals, prices)
		if err != nil {
			return nil, err
		}
		if added == 0 {
			break
		}
	}
	return prices, nil
}

// lrnaPrice derives the USDT value of one LRNA unit, integer-scaled by 1e12.
// Preferred path: USDT's own Omnipool state. Fallback: the most liquid
// stablecoin-backed LP token (a Stableswap pool containing USDT whose share
// token sits in the Omnipool), valued at 1 USDT. Returns nil when neither
// path works; XYK/Stableswap propagation then runs from the anchor alone.
func (r *Resolver) lrnaPrice(state *PoolState, decimals DecimalsFn) (*uint256.Int, error) {
	for _, a := range state.Omnipool {
		if a.AssetID != r.usdtAssetID || a.HubReserve.IsZero() {
			continue
		}
		d, ok := decimals(r.usdtAssetID)
		if !ok {
			break
		}
		return r.lrnaFromEntry(a, d)
	}

	// Share tokens of USDT-containing Stableswap pools, ranked by Omnipool
	// hub reserve; ties break to the lowest asset id for determinism.
	var best *OmnipoolAsset
	for _, pool := range state.Stableswap {
		if !containsAsset(pool.Pool.Assets, r.usdtAssetID) {
			continue
		}
		for i := range state.Omnipool {
			a := &state.Omnipool[i]
			if a.AssetID != pool.Pool.PoolID || a.HubReserve.IsZero() {
				continue
			}
			if best == nil ||
				a.HubReserve.Cmp(best.HubReserve) > 0 ||
				(a.HubReserve.Cmp(best.HubReserve) == 0 && a.AssetID < best.AssetID) {
				best = a
			}
		}
	}
	if best == nil {
		r.logger.Warn("no LRNA price path, omnipool pricing skipped")
		return nil, nil
	}
	d, ok := decimals(best.AssetID)
	if !ok {
		r.logger.Warn("stable LP decimals unknown, omnipool pricing skipped",
			zap.Uint32("asset", best.AssetID))
		return nil, nil
	}
	return r.lrnaFromEntry(*best, d)
}

// lrnaFromEntry treats the entry's token as worth exactly 1 USDT:
// lrna = reserve/10^d per hubReserve/10^12 units, scaled by 1e12.
func (r *Resolver) lrnaFromEntry(a OmnipoolAsset, d uint8) (*uint256.Int, error) {
	den, err := fixed.Mul(a.HubReserve, fixed.Pow10(d))
	if err != nil {
		return nil, fmt.Errorf("lrna price: %w", err)
	}
	p, err := fixed.MulDiv(a.Reserve, fixed.Pow10(2*fixed.Scale), den)
	if errors.Is(err, fixed.ErrDivisionByZero) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lrna price: %w", err)
	}
	return p, nil
}

// priceOmnipool anchors every Omnipool asset:
// price[a] = hubReserve * 10^d * lrnaPrice / (reserve * 10^12).
func (r *Resolver) priceOmnipool(state *PoolState, decimals DecimalsFn, prices PriceMap, lrnaPrice *uint256.Int) error {
	for _, a := range state.Omnipool {
		if _, done := prices[a.AssetID]; done {
			continue
		}
		if a.HubReserve.IsZero() || a.Reserve.IsZero() {
			continue
		}
		d, ok := decimals(a.AssetID)
		if !ok {
			r.logger.Warn("omnipool asset decimals unknown, skipped", zap.Uint32("asset", a.AssetID))
			continue
		}
		num, err := fixed.Mul(a.HubReserve, fixed.Pow10(d))
		if err != nil {
			return fmt.Errorf("omnipool price asset %d: %w", a.AssetID, err)
		}
		den, err := fixed.Mul(a.Reserve, fixed.Pow10(fixed.Scale))
		if err != nil {
			return fmt.Errorf("omnipool price asset %d: %w", a.AssetID, err)
		}
		p, err := fixed.MulDiv(num, lrnaPrice, den)
		if err != nil {
			return fmt.Errorf("omnipool price asset %d: %w", a.AssetID, err)
		}
		prices[a.AssetID] = p
	}
	return nil
}

// propagate runs one fixpoint round: XYK pools first, then Stableswap pools.
// Derivations read the snapshot taken at round start, so a price derived in
// this round is not used as a source before the next round. When several
// pools can derive the same asset in one round, the first pool in iteration
// order sets it. Already-priced assets (Omnipool included) are never
// overwritten.
func (r *Resolver) propagate(state *PoolState, decimals DecimalsFn, prices PriceMap) (int, error) {
	snap := make(PriceMap, len(prices))
	for id, p := range prices {
		snap[id] = p
	}
	added := 0

	for _, pool := range state.XYK {
		if pool.ReserveA.IsZero() || pool.ReserveB.IsZero() {
			continue
		}
		pa, okA := snap[pool.Pool.AssetA]
		pb, okB := snap[pool.Pool.AssetB]
		if okA == okB {
			continue
		}
		da, haveA := decimals(pool.Pool.AssetA)
		db, haveB := decimals(pool.Pool.AssetB)
		if !haveA || !haveB {
			continue
		}

		var target uint32
		var derived *uint256.Int
		var err error
		if okA {
			// price[B] = reserveA * 10^dB * price[A] / (reserveB * 10^dA)
			target = pool.Pool.AssetB
			derived, err = xykPrice(pool.ReserveA, pool.ReserveB, da, db, pa)
		} else {
			target = pool.Pool.AssetA
			derived, err = xykPrice(pool.ReserveB, pool.ReserveA, db, da, pb)
		}
		if errors.Is(err, fixed.ErrDivisionByZero) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("xyk price asset %d: %w", target, err)
		}
		if _, done := prices[target]; !done {
			prices[target] = derived
			added++
		}
	}

	for _, pool := range state.Stableswap {
		refIdx := -1
		anyUnpriced := false
		for i, asset := range pool.Pool.Assets {
			if _, ok := snap[asset]; ok {
				if refIdx == -1 {
					refIdx = i
				}
			} else {
				anyUnpriced = true
			}
		}
		if refIdx == -1 || !anyUnpriced {
			continue
		}
		refAsset := pool.Pool.Assets[refIdx]
		refPrice := snap[refAsset]
		refDecimals, ok := decimals(refAsset)
		if !ok {
			continue
		}

		for i, asset := range pool.Pool.Assets {
			if _, done := prices[asset]; done {
				continue
			}
			d, ok := decimals(asset)
			if !ok {
				continue
			}
			spot, err := stablemath.SpotPrice(pool.Reserves, pool.Amplification, i, refIdx, d, refDecimals)
			if errors.Is(err, stablemath.ErrUnpriceable) {
				r.logger.Debug("stableswap pool not priceable",
					zap.Uint32("pool", pool.Pool.PoolID), zap.Uint32("asset", asset))
				continue
			}
			if err != nil {
				return 0, fmt.Errorf("stableswap price asset %d: %w", asset, err)
			}
			p, err := fixed.MulDiv(spot, refPrice, fixed.Pow10(fixed.Scale))
			if err != nil {
				return 0, fmt.Errorf("stableswap price asset %d: %w", asset, err)
			}
			prices[asset] = p
			added++
		}
	}

	return added, nil
}

func xykPrice(reserveKnown, reserveTarget *uint256.Int, decimalsKnown, decimalsTarget uint8, priceKnown *uint256.Int) (*uint256.Int, error) {
	num, err := fixed.Mul(reserveKnown, fixed.Pow10(decimalsTarget))
	if err != nil {
		return nil, err
	}
	den, err := fixed.Mul(reserveTarget, fixed.Pow10(decimalsKnown))
	if err != nil {
		return nil, err
	}
	return fixed.MulDiv(num, priceKnown, den)
}

func containsAsset(assets []uint32, id uint32) bool {
	for _, a := range assets {
		if a == id {
			return true
		}
	}
	return false
}
