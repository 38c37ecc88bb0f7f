// Package stablemath implements the Curve-style invariant solvers used to
// price Stableswap pool assets: Newton's method for the pool invariant D,
// the single-balance solve Y, and the spot price obtained by simulating a
// 0.01% probe swap. All arithmetic is integer-only on 256-bit values;
// division truncates.
package stablemath

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hydration-network/hydrax/pkg/fixed"
)

const (
	maxDIterations = 64
	maxYIterations = 128

	// spotProbeDivisor sizes the simulated swap at 0.01% of the input
	// reserve, small enough that slippage is negligible against the
	// convergence threshold.
	spotProbeDivisor = 10_000
)

// ErrUnpriceable marks a data condition (zero reserve, probe too small,
// degenerate denominator) under which the pool is skipped for the block.
var ErrUnpriceable = errors.New("stablemath: pool not priceable")

// CalculateD solves the Stableswap invariant for the given reserves and
// amplification coefficient. Returns 0 when any reserve is zero.
func CalculateD(reserves []*uint256.Int, amplification uint64) (*uint256.Int, error) {
	n := uint64(len(reserves))
	if n < 2 {
		return uint256.NewInt(0), nil
	}

	sum := new(uint256.Int)
	for _, r := range reserves {
		if r.IsZero() {
			return uint256.NewInt(0), nil
		}
		var overflow bool
		if _, overflow = sum.AddOverflow(sum, r); overflow {
			return nil, fixed.ErrOverflow
		}
	}

	ann, err := annCoefficient(amplification, n)
	if err != nil {
		return nil, err
	}
	nInt := uint256.NewInt(n)

	d := new(uint256.Int).Set(sum)
	for i := 0; i < maxDIterations; i++ {
		// dProd = D * prod(D / (reserve_i * n)), folded with truncating division.
		dProd := new(uint256.Int).Set(d)
		for _, r := range reserves {
			rn, err := fixed.Mul(r, nInt)
			if err != nil {
				return nil, err
			}
			dProd, err = fixed.MulDiv(dProd, d, rn)
			if err != nil {
				return nil, err
			}
		}

		// D' = (Ann*sum + dProd*n) * D / ((Ann-1)*D + (n+1)*dProd)
		t1, err := fixed.Mul(ann, sum)
		if err != nil {
			return nil, err
		}
		t2, err := fixed.Mul(dProd, nInt)
		if err != nil {
			return nil, err
		}
		num, overflow := new(uint256.Int).AddOverflow(t1, t2)
		if overflow {
			return nil, fixed.ErrOverflow
		}

		annMinus1 := new(uint256.Int).Sub(ann, uint256.NewInt(1))
		den1, err := fixed.Mul(annMinus1, d)
		if err != nil {
			return nil, err
		}
		nPlus1 := uint256.NewInt(n + 1)
		den2, err := fixed.Mul(nPlus1, dProd)
		if err != nil {
			return nil, err
		}
		den, overflow := new(uint256.Int).AddOverflow(den1, den2)
		if overflow {
			return nil, fixed.ErrOverflow
		}

		next, err := fixed.MulDiv(num, d, den)
		if err != nil {
			return nil, err
		}

		if withinOne(next, d) {
			return next, nil
		}
		d = next
	}
	return d, nil
}

// CalculateY solves for the reserve of asset targetIdx that preserves the
// invariant d given every other reserve. The reserve at targetIdx is ignored.
func CalculateY(reserves []*uint256.Int, amplification uint64, targetIdx int, d *uint256.Int) (*uint256.Int, error) {
	n := uint64(len(reserves))
	if n < 2 || targetIdx < 0 || targetIdx >= len(reserves) {
		return nil, ErrUnpriceable
	}
	if d.IsZero() {
		return nil, ErrUnpriceable
	}

	ann, err := annCoefficient(amplification, n)
	if err != nil {
		return nil, err
	}
	nInt := uint256.NewInt(n)

	// c = D^(n+1) / (n^n * prod(other reserves) * Ann), folded one factor
	// at a time to keep intermediates inside 512 bits.
	c := new(uint256.Int).Set(d)
	sum := new(uint256.Int)
	for i, r := range reserves {
		if i == targetIdx {
			continue
		}
		if r.IsZero() {
			return nil, ErrUnpriceable
		}
		rn, err := fixed.Mul(r, nInt)
		if err != nil {
			return nil, err
		}
		c, err = fixed.MulDiv(c, d, rn)
		if err != nil {
			return nil, err
		}
		var overflow bool
		if _, overflow = sum.AddOverflow(sum, r); overflow {
			return nil, fixed.ErrOverflow
		}
	}
	annN, err := fixed.Mul(ann, nInt)
	if err != nil {
		return nil, err
	}
	c, err = fixed.MulDiv(c, d, annN)
	if err != nil {
		return nil, err
	}

	// b = sum(other reserves) + D/Ann
	b := new(uint256.Int).Div(d, ann)
	var overflow bool
	if _, overflow = b.AddOverflow(b, sum); overflow {
		return nil, fixed.ErrOverflow
	}

	y := new(uint256.Int).Set(d)
	for i := 0; i < maxYIterations; i++ {
		// y' = (y^2 + c) / (2y + b - D)
		y2, err := fixed.Mul(y, y)
		if err != nil {
			return nil, err
		}
		num, overflow := new(uint256.Int).AddOverflow(y2, c)
		if overflow {
			return nil, fixed.ErrOverflow
		}

		den := new(uint256.Int).Lsh(y, 1)
		if _, overflow = den.AddOverflow(den, b); overflow {
			return nil, fixed.ErrOverflow
		}
		if den.Cmp(d) <= 0 {
			return nil, ErrUnpriceable
		}
		den.Sub(den, d)

		next := new(uint256.Int).Div(num, den)
		if withinOne(next, y) {
			return next, nil
		}
		y = next
	}
	return y, nil
}

// SpotPrice prices asset inIdx in units of asset outIdx as a 12-decimal
// scaled integer, by pushing 0.01% of the input reserve through the curve.
func SpotPrice(reserves []*uint256.Int, amplification uint64, inIdx, outIdx int, decimalsIn, decimalsOut uint8) (*uint256.Int, error) {
	if inIdx == outIdx || inIdx < 0 || outIdx < 0 || inIdx >= len(reserves) || outIdx >= len(reserves) {
		return nil, ErrUnpriceable
	}
	for _, r := range reserves {
		if r.IsZero() {
			return nil, ErrUnpriceable
		}
	}

	d, err := CalculateD(reserves, amplification)
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, ErrUnpriceable
	}

	swap := new(uint256.Int).Div(reserves[inIdx], uint256.NewInt(spotProbeDivisor))
	if swap.IsZero() {
		return nil, ErrUnpriceable
	}

	shifted := make([]*uint256.Int, len(reserves))
	for i, r := range reserves {
		shifted[i] = new(uint256.Int).Set(r)
	}
	var overflow bool
	if _, overflow = shifted[inIdx].AddOverflow(shifted[inIdx], swap); overflow {
		return nil, fixed.ErrOverflow
	}

	newY, err := CalculateY(shifted, amplification, outIdx, d)
	if err != nil {
		return nil, err
	}
	if newY.Cmp(reserves[outIdx]) >= 0 {
		return nil, ErrUnpriceable
	}
	received := new(uint256.Int).Sub(reserves[outIdx], newY)

	// price = received * 10^decimalsIn * 10^12 / (swap * 10^decimalsOut)
	den, err := fixed.Mul(swap, fixed.Pow10(decimalsOut))
	if err != nil {
		return nil, err
	}
	return fixed.MulDiv(received, fixed.Pow10(decimalsIn+fixed.Scale), den)
}

// AmplificationAt interpolates the amplification coefficient linearly along
// the ramp [(blockStart, initial), (blockEnd, final)], clamped at both ends.
func AmplificationAt(initial, final uint64, blockStart, blockEnd, current uint32) uint64 {
	if current <= blockStart || blockEnd <= blockStart {
		return initial
	}
	if current >= blockEnd {
		return final
	}
	elapsed := int64(current) - int64(blockStart)
	span := int64(blockEnd) - int64(blockStart)
	delta := (int64(final) - int64(initial)) * elapsed / span
	return uint64(int64(initial) + delta)
}

func annCoefficient(amplification, n uint64) (*uint256.Int, error) {
	if amplification == 0 {
		return nil, ErrUnpriceable
	}
	ann := uint256.NewInt(amplification)
	nInt := uint256.NewInt(n)
	for i := uint64(0); i < n; i++ {
		var err error
		ann, err = fixed.Mul(ann, nInt)
		if err != nil {
			return nil, fmt.Errorf("ann coefficient: %w", err)
		}
	}
	return ann, nil
}

func withinOne(a, b *uint256.Int) bool {
	diff := new(uint256.Int)
	if a.Cmp(b) >= 0 {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return diff.CmpUint64(1) <= 0
}
