package indexer

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/fixed"
)

// Swap is a normalized trade: amountIn of assetIn was sold for amountOut of
// assetOut, regardless of which pallet executed it or whether the extrinsic
// was a buy or a sell.
type Swap struct {
	AssetIn   uint32
	AssetOut  uint32
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
}

// amount accepts u128 values encoded either as JSON strings or numbers.
type amount struct {
	*uint256.Int
}

func (a *amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return fmt.Errorf("null amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return fmt.Errorf("amount %q: %w", s, err)
	}
	a.Int = v
	return nil
}

// Versioned argument layouts. Decoding succeeds only when every field the
// version introduced is present, so probing newest-to-oldest lands on the
// schema the block was actually produced with.

type omnipoolSwapV201 struct {
	AssetIn           *uint32 `json:"assetIn"`
	AssetOut          *uint32 `json:"assetOut"`
	AmountIn          *amount `json:"amountIn"`
	AmountOut         *amount `json:"amountOut"`
	HubAmountIn       *amount `json:"hubAmountIn"`
	HubAmountOut      *amount `json:"hubAmountOut"`
	AssetFeeAmount    *amount `json:"assetFeeAmount"`
	ProtocolFeeAmount *amount `json:"protocolFeeAmount"`
}

type omnipoolSwapV170 struct {
	AssetIn           *uint32 `json:"assetIn"`
	AssetOut          *uint32 `json:"assetOut"`
	AmountIn          *amount `json:"amountIn"`
	AmountOut         *amount `json:"amountOut"`
	AssetFeeAmount    *amount `json:"assetFeeAmount"`
	ProtocolFeeAmount *amount `json:"protocolFeeAmount"`
}

type omnipoolSwapV115 struct {
	AssetIn   *uint32 `json:"assetIn"`
	AssetOut  *uint32 `json:"assetOut"`
	AmountIn  *amount `json:"amountIn"`
	AmountOut *amount `json:"amountOut"`
}

type xykSellV183 struct {
	AssetIn   *uint32 `json:"assetIn"`
	AssetOut  *uint32 `json:"assetOut"`
	Amount    *amount `json:"amount"`
	SalePrice *amount `json:"salePrice"`
}

type xykBuyV183 struct {
	AssetIn  *uint32 `json:"assetIn"`
	AssetOut *uint32 `json:"assetOut"`
	Amount   *amount `json:"amount"`
	BuyPrice *amount `json:"buyPrice"`
}

type stableswapSwapV183 struct {
	PoolID    *uint32 `json:"poolId"`
	AssetIn   *uint32 `json:"assetIn"`
	AssetOut  *uint32 `json:"assetOut"`
	AmountIn  *amount `json:"amountIn"`
	AmountOut *amount `json:"amountOut"`
}

type swapDecoder struct {
	minSpec uint32
	decode  func(args []byte) (Swap, bool)
}

func hasFields(fields ...any) bool {
	for _, f := range fields {
		switch v := f.(type) {
		case *uint32:
			if v == nil {
				return false
			}
		case *amount:
			if v == nil || v.Int == nil {
				return false
			}
		}
	}
	return true
}

// swapDecoders maps (pallet, event) to its version table, newest first.
// New runtime versions are added at the head.
var swapDecoders = map[[2]string][]swapDecoder{}

func init() {
	omnipool := []swapDecoder{
		{minSpec: 201, decode: func(args []byte) (Swap, bool) {
			var a omnipoolSwapV201
			if json.Unmarshal(args, &a) != nil ||
				!hasFields(a.AssetIn, a.AssetOut, a.AmountIn, a.AmountOut, a.HubAmountIn, a.HubAmountOut) {
				return Swap{}, false
			}
			return Swap{*a.AssetIn, *a.AssetOut, a.AmountIn.Int, a.AmountOut.Int}, true
		}},
		{minSpec: 170, decode: func(args []byte) (Swap, bool) {
			var a omnipoolSwapV170
			if json.Unmarshal(args, &a) != nil ||
				!hasFields(a.AssetIn, a.AssetOut, a.AmountIn, a.AmountOut, a.AssetFeeAmount) {
				return Swap{}, false
			}
			return Swap{*a.AssetIn, *a.AssetOut, a.AmountIn.Int, a.AmountOut.Int}, true
		}},
		{minSpec: 115, decode: func(args []byte) (Swap, bool) {
			var a omnipoolSwapV115
			if json.Unmarshal(args, &a) != nil ||
				!hasFields(a.AssetIn, a.AssetOut, a.AmountIn, a.AmountOut) {
				return Swap{}, false
			}
			return Swap{*a.AssetIn, *a.AssetOut, a.AmountIn.Int, a.AmountOut.Int}, true
		}},
	}
	swapDecoders[[2]string{"Omnipool", "SellExecuted"}] = omnipool
	swapDecoders[[2]string{"Omnipool", "BuyExecuted"}] = omnipool

	// XYK events carry (amount, salePrice) / (buyPrice, amount) instead of
	// explicit in/out amounts.
	swapDecoders[[2]string{"XYK", "SellExecuted"}] = []swapDecoder{
		{minSpec: 183, decode: func(args []byte) (Swap, bool) {
			var a xykSellV183
			if json.Unmarshal(args, &a) != nil ||
				!hasFields(a.AssetIn, a.AssetOut, a.Amount, a.SalePrice) {
				return Swap{}, false
			}
			return Swap{*a.AssetIn, *a.AssetOut, a.Amount.Int, a.SalePrice.Int}, true
		}},
	}
	swapDecoders[[2]string{"XYK", "BuyExecuted"}] = []swapDecoder{
		{minSpec: 183, decode: func(args []byte) (Swap, bool) {
			var a xykBuyV183
			if json.Unmarshal(args, &a) != nil ||
				!hasFields(a.AssetIn, a.AssetOut, a.Amount, a.BuyPrice) {
				return Swap{}, false
			}
			return Swap{*a.AssetIn, *a.AssetOut, a.BuyPrice.Int, a.Amount.Int}, true
		}},
	}

	stableswap := []swapDecoder{
		{minSpec: 183, decode: func(args []byte) (Swap, bool) {
			var a stableswapSwapV183
			if json.Unmarshal(args, &a) != nil ||
				!hasFields(a.PoolID, a.AssetIn, a.AssetOut, a.AmountIn, a.AmountOut) {
				return Swap{}, false
			}
			return Swap{*a.AssetIn, *a.AssetOut, a.AmountIn.Int, a.AmountOut.Int}, true
		}},
	}
	swapDecoders[[2]string{"Stableswap", "SellExecuted"}] = stableswap
	swapDecoders[[2]string{"Stableswap", "BuyExecuted"}] = stableswap
}

// DecodeSwaps extracts every swap in the block. Undecodable swap events are
// logged and dropped; they never abort the block.
func DecodeSwaps(logger *zap.Logger, events []chain.Event, specVersion uint32) []Swap {
	var swaps []Swap
	for _, ev := range events {
		table, ok := swapDecoders[[2]string{ev.Pallet, ev.Name}]
		if !ok {
			continue
		}
		decoded := false
		for _, dec := range table {
			if dec.minSpec > specVersion {
				continue
			}
			if swap, ok := dec.decode(ev.Args); ok {
				swaps = append(swaps, swap)
				decoded = true
				break
			}
		}
		if !decoded {
			logger.Warn("swap event did not match any schema version",
				zap.String("pallet", ev.Pallet),
				zap.String("event", ev.Name),
				zap.Uint32("spec_version", specVersion))
		}
	}
	return swaps
}

// VolumeAggregate sums one asset's in-block trading activity, split by side.
type VolumeAggregate struct {
	NativeBuy  *uint256.Int
	NativeSell *uint256.Int
	UsdtBuy    *uint256.Int
	UsdtSell   *uint256.Int
}

func newVolumeAggregate() *VolumeAggregate {
	return &VolumeAggregate{
		NativeBuy:  new(uint256.Int),
		NativeSell: new(uint256.Int),
		UsdtBuy:    new(uint256.Int),
		UsdtSell:   new(uint256.Int),
	}
}

// ExtractVolumes turns swaps into per-asset volume aggregates. Each swap
// contributes a sell record for the input asset and a buy record for the
// output asset. USDT-denominated values use the block's just-computed prices;
// a missing or zero price yields zero USDT volume while the native amount is
// still recorded.
func ExtractVolumes(logger *zap.Logger, swaps []Swap, prices PriceMap, decimals DecimalsFn) (map[uint32]*VolumeAggregate, error) {
	volumes := make(map[uint32]*VolumeAggregate)
	get := func(asset uint32) *VolumeAggregate {
		agg, ok := volumes[asset]
		if !ok {
			agg = newVolumeAggregate()
			volumes[asset] = agg
		}
		return agg
	}

	for _, swap := range swaps {
		sellUsdt, err := usdtVolume(logger, swap.AmountIn, swap.AssetIn, prices, decimals)
		if err != nil {
			return nil, err
		}
		buyUsdt, err := usdtVolume(logger, swap.AmountOut, swap.AssetOut, prices, decimals)
		if err != nil {
			return nil, err
		}

		in := get(swap.AssetIn)
		if err := addChecked(in.NativeSell, swap.AmountIn); err != nil {
			return nil, err
		}
		if err := addChecked(in.UsdtSell, sellUsdt); err != nil {
			return nil, err
		}

		out := get(swap.AssetOut)
		if err := addChecked(out.NativeBuy, swap.AmountOut); err != nil {
			return nil, err
		}
		if err := addChecked(out.UsdtBuy, buyUsdt); err != nil {
			return nil, err
		}
	}
	return volumes, nil
}

// usdtVolume converts a native amount to its 12-decimal USDT value:
// amount * price / 10^decimals.
func usdtVolume(logger *zap.Logger, nativeAmount *uint256.Int, asset uint32, prices PriceMap, decimals DecimalsFn) (*uint256.Int, error) {
	price, ok := prices[asset]
	if !ok || price.IsZero() {
		return new(uint256.Int), nil
	}
	d, ok := decimals(asset)
	if !ok {
		logger.Warn("asset decimals unknown, USDT volume zeroed", zap.Uint32("asset", asset))
		return new(uint256.Int), nil
	}
	return fixed.MulDiv(nativeAmount, price, fixed.Pow10(d))
}

func addChecked(dst, v *uint256.Int) error {
	if _, overflow := dst.AddOverflow(dst, v); overflow {
		return fixed.ErrOverflow
	}
	return nil
}
