package indexer

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/db/models"
)

// defaultDecimals applies when the registry entry predates the decimals
// field or never set it.
const defaultDecimals uint8 = 12

// Registry maintains the in-memory asset metadata cache and surfaces rows
// for new or changed assets. Snapshots run every interval blocks (a larger
// stride during backfill, a smaller one once live). The decimals view feeds
// the resolver and volume extractor.
type Registry struct {
	logger       *zap.Logger
	interval     uint32
	liveInterval uint32

	cache    map[uint32]models.Asset
	decimals *xsync.Map[uint32, uint8]

	scanned        bool
	lastScanHeight uint32
}

func NewRegistry(logger *zap.Logger, interval, liveInterval uint32) *Registry {
	return &Registry{
		logger:       logger.Named("registry"),
		interval:     interval,
		liveInterval: liveInterval,
		cache:        make(map[uint32]models.Asset),
		decimals:     xsync.NewMap[uint32, uint8](),
	}
}

// Decimals returns the cached decimals for an asset. False until the asset
// has appeared in a snapshot.
func (r *Registry) Decimals(assetID uint32) (uint8, bool) {
	return r.decimals.Load(assetID)
}

// MaybeScan snapshots the registry when due and returns rows for assets that
// are new or whose metadata changed. Scan failures log and defer to the next
// block; the stale cache keeps serving decimals meanwhile.
func (r *Registry) MaybeScan(ctx context.Context, block *chain.Block, live bool) []*models.Asset {
	stride := r.interval
	if live {
		stride = r.liveInterval
	}
	if r.scanned && block.Height-r.lastScanHeight < stride {
		return nil
	}

	entries, err := block.Storage.RegistryAssets(ctx)
	if err != nil {
		r.logger.Warn("registry scan failed",
			zap.Uint32("height", block.Height), zap.Error(err))
		return nil
	}
	r.scanned = true
	r.lastScanHeight = block.Height

	var changed []*models.Asset
	for _, entry := range entries {
		row := models.Asset{
			AssetID:  entry.AssetID,
			Symbol:   decodeLabel(entry.Symbol, entry.AssetID),
			Name:     decodeLabel(entry.Name, entry.AssetID),
			Decimals: defaultDecimals,
		}
		if entry.Decimals != nil {
			row.Decimals = *entry.Decimals
		}

		prev, known := r.cache[entry.AssetID]
		if !known || prev != row {
			rowCopy := row
			changed = append(changed, &rowCopy)
		}
		r.cache[entry.AssetID] = row
		r.decimals.Store(entry.AssetID, row.Decimals)
	}

	if len(changed) > 0 {
		r.logger.Info("registry snapshot",
			zap.Uint32("height", block.Height),
			zap.Int("assets", len(entries)),
			zap.Int("changed", len(changed)))
	}
	return changed
}

// decodeLabel interprets a raw on-chain byte string as UTF-8, falling back
// to a synthetic label for empty or invalid data.
func decodeLabel(raw []byte, assetID uint32) string {
	if len(raw) == 0 || !utf8.Valid(raw) {
		return fmt.Sprintf("Asset%d", assetID)
	}
	return string(raw)
}
