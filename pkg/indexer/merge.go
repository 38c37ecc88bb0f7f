package indexer

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/hydration-network/hydrax/pkg/db/models"
	"github.com/hydration-network/hydrax/pkg/fixed"
)

// MergeRows combines the block's price snapshot and aggregated volumes into
// the final per-(asset, block) rows. Assets with a price get a row whether
// or not they traded; assets that traded without a resolvable price get a
// volume-only row with the zero-price sentinel. Rows come out sorted by
// asset id.
func MergeRows(height uint32, prices PriceMap, volumes map[uint32]*VolumeAggregate) []*models.Price {
	assets := make([]uint32, 0, len(prices)+len(volumes))
	for id := range prices {
		assets = append(assets, id)
	}
	for id := range volumes {
		if _, priced := prices[id]; !priced {
			assets = append(assets, id)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })

	rows := make([]*models.Price, 0, len(assets))
	for _, id := range assets {
		row := &models.Price{
			AssetID:          id,
			BlockHeight:      height,
			UsdtPrice:        decimal.Zero,
			NativeVolumeBuy:  big.NewInt(0),
			NativeVolumeSell: big.NewInt(0),
			UsdtVolumeBuy:    decimal.Zero,
			UsdtVolumeSell:   decimal.Zero,
		}
		if p, ok := prices[id]; ok {
			row.UsdtPrice = fixedDecimal(p)
		}
		if v, ok := volumes[id]; ok {
			row.NativeVolumeBuy = v.NativeBuy.ToBig()
			row.NativeVolumeSell = v.NativeSell.ToBig()
			row.UsdtVolumeBuy = fixedDecimal(v.UsdtBuy)
			row.UsdtVolumeSell = fixedDecimal(v.UsdtSell)
		}
		rows = append(rows, row)
	}
	return rows
}

// fixedDecimal converts a 12-scaled integer into the store's decimal form
// without any intermediate string or float.
func fixedDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -fixed.Scale)
}
