// Package fixed implements the 12-fractional-digit fixed-point arithmetic
// used for USDT prices and volumes. Values are non-negative integers scaled
// by 1e12 and carried as uint256; the wire representation is a decimal
// string with exactly twelve fractional digits. Division truncates.
package fixed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Scale is the number of fractional digits carried by every price and
// USDT-denominated volume.
const Scale = 12

var (
	ErrOverflow       = errors.New("fixed: 256-bit overflow")
	ErrDivisionByZero = errors.New("fixed: division by zero")

	pow10 [78]*uint256.Int
)

func init() {
	ten := uint256.NewInt(10)
	p := uint256.NewInt(1)
	for i := range pow10 {
		pow10[i] = new(uint256.Int).Set(p)
		p.Mul(p, ten)
	}
}

// Pow10 returns 10^n. n is bounded by the widest value representable in
// 256 bits (10^77); asset decimals never exceed 30.
func Pow10(n uint8) *uint256.Int {
	if int(n) >= len(pow10) {
		panic(fmt.Sprintf("fixed: pow10 exponent %d out of range", n))
	}
	return new(uint256.Int).Set(pow10[n])
}

// One is the fixed-point representation of 1.0.
func One() *uint256.Int {
	return Pow10(Scale)
}

// Format renders a scaled integer as its canonical decimal string,
// e.g. 1_000_000_000_000 -> "1.000000000000".
func Format(v *uint256.Int) string {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(v, pow10[Scale], r)
	return fmt.Sprintf("%s.%012s", q.Dec(), r.Dec())
}

// Parse reads a decimal string back into the scaled integer form. Fractional
// digits beyond the twelfth are truncated, matching integer division.
func Parse(s string) (*uint256.Int, error) {
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > Scale {
		fracPart = fracPart[:Scale]
	}
	fracPart += strings.Repeat("0", Scale-len(fracPart))

	i, err := uint256.FromDecimal(intPart)
	if err != nil {
		return nil, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	f, err := uint256.FromDecimal(fracPart)
	if err != nil {
		return nil, fmt.Errorf("fixed: parse %q: %w", s, err)
	}
	v, overflow := new(uint256.Int).MulOverflow(i, pow10[Scale])
	if overflow {
		return nil, ErrOverflow
	}
	v, overflow = v.AddOverflow(v, f)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// MulDiv computes (a*b)/d with a 512-bit intermediate product and truncating
// division. A zero divisor is a data condition (pool not priceable); a result
// that does not fit 256 bits is an implementation bug surfaced as ErrOverflow.
func MulDiv(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Mul computes a*b with overflow detection.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}
