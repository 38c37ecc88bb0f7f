package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/db"
	"github.com/hydration-network/hydrax/pkg/db/models"
	"github.com/hydration-network/hydrax/pkg/retry"
)

// Writer accumulates rows per table and flushes them in size-bounded batches
// with deterministic dedup tokens, so a retried batch is a server-side no-op.
// Blocks always land before prices within a flush: the candle views join
// prices against blocks at insert time. The checkpoint only advances for
// heights the source reported finalized.
type Writer struct {
	logger       *zap.Logger
	store        *db.DB
	batchSize    int
	checkpointID string

	prices   []*models.Price
	blocks   []*models.Block
	assets   []*models.Asset
	upgrades []*models.RuntimeUpgrade

	pendingHigh    uint32
	havePending    bool
	lastFlushed    uint32
	haveFlushed    bool
	lastCheckpoint uint32
	haveCheckpoint bool
}

func NewWriter(logger *zap.Logger, store *db.DB, batchSize int, checkpointID string) *Writer {
	return &Writer{
		logger:       logger.Named("writer"),
		store:        store,
		batchSize:    batchSize,
		checkpointID: checkpointID,
	}
}

func (w *Writer) AddBlock(row *models.Block)            { w.blocks = append(w.blocks, row) }
func (w *Writer) AddPrices(rows []*models.Price)        { w.prices = append(w.prices, rows...) }
func (w *Writer) AddAssets(rows []*models.Asset)        { w.assets = append(w.assets, rows...) }
func (w *Writer) AddUpgrade(row *models.RuntimeUpgrade) { w.upgrades = append(w.upgrades, row) }

// NoteProcessed marks height as fully buffered. The next successful Flush
// makes it eligible for checkpointing.
func (w *Writer) NoteProcessed(height uint32) {
	w.pendingHigh = height
	w.havePending = true
}

// FlushIfFull flushes once the prices or blocks accumulator reaches the batch
// size; buffered assets and runtime upgrades do not trigger a flush.
func (w *Writer) FlushIfFull(ctx context.Context) error {
	if len(w.prices) >= w.batchSize || len(w.blocks) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered row. Ordering: blocks, then prices, then
// assets and runtime upgrades concurrently. A flush that fails after retries
// is fatal; the checkpoint has not advanced, so restart replays the batch.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.blocks) == 0 && len(w.prices) == 0 && len(w.assets) == 0 && len(w.upgrades) == 0 {
		return nil
	}

	blocks, prices, assets, upgrades := w.blocks, w.prices, w.assets, w.upgrades
	w.blocks, w.prices, w.assets, w.upgrades = nil, nil, nil, nil

	cfg := retry.FlushConfig()

	if len(blocks) > 0 {
		token := blockRangeToken(models.BlocksTableName, blocks[0].BlockHeight, blocks[len(blocks)-1].BlockHeight, len(blocks))
		err := retry.WithBackoff(ctx, cfg, w.logger, "flush_blocks", func() error {
			return w.store.InsertBlocks(ctx, token, blocks)
		})
		if err != nil {
			return err
		}
	}

	if len(prices) > 0 {
		minH, maxH := prices[0].BlockHeight, prices[0].BlockHeight
		for _, row := range prices {
			if row.BlockHeight < minH {
				minH = row.BlockHeight
			}
			if row.BlockHeight > maxH {
				maxH = row.BlockHeight
			}
		}
		token := blockRangeToken(models.PricesTableName, minH, maxH, len(prices))
		err := retry.WithBackoff(ctx, cfg, w.logger, "flush_prices", func() error {
			return w.store.InsertPrices(ctx, token, prices)
		})
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(assets) > 0 {
		minID, maxID := assets[0].AssetID, assets[0].AssetID
		for _, row := range assets {
			if row.AssetID < minID {
				minID = row.AssetID
			}
			if row.AssetID > maxID {
				maxID = row.AssetID
			}
		}
		token := blockRangeToken(models.AssetsTableName, minID, maxID, len(assets))
		g.Go(func() error {
			return retry.WithBackoff(gctx, cfg, w.logger, "flush_assets", func() error {
				return w.store.InsertAssets(gctx, token, assets)
			})
		})
	}
	if len(upgrades) > 0 {
		token := blockRangeToken(models.RuntimeUpgradesTableName,
			upgrades[0].BlockHeight, upgrades[len(upgrades)-1].BlockHeight, len(upgrades))
		g.Go(func() error {
			return retry.WithBackoff(gctx, cfg, w.logger, "flush_runtime_upgrades", func() error {
				return w.store.InsertRuntimeUpgrades(gctx, token, upgrades)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if w.havePending {
		w.lastFlushed = w.pendingHigh
		w.haveFlushed = true
	}

	w.logger.Debug("flushed",
		zap.Int("blocks", len(blocks)),
		zap.Int("prices", len(prices)),
		zap.Int("assets", len(assets)),
		zap.Int("upgrades", len(upgrades)))
	return nil
}

// Checkpoint records the highest flushed height the source asserts is
// finalized. Hot heights above the finalized head are flushed but never
// checkpointed; the idempotent primary key replaces their rows on replay.
func (w *Writer) Checkpoint(ctx context.Context, finalized chain.Head) error {
	if !w.haveFlushed {
		return nil
	}
	cp := w.lastFlushed
	if finalized.Height < cp {
		cp = finalized.Height
	}
	if w.haveCheckpoint && cp <= w.lastCheckpoint {
		return nil
	}
	if err := w.store.SaveCheckpoint(ctx, w.checkpointID, cp); err != nil {
		return fmt.Errorf("checkpoint %s: %w", w.checkpointID, err)
	}
	w.lastCheckpoint = cp
	w.haveCheckpoint = true
	w.logger.Debug("checkpoint advanced",
		zap.String("id", w.checkpointID), zap.Uint32("last_block", cp))
	return nil
}

// blockRangeToken derives the batch dedup token. Buffers cover contiguous
// height windows, so (table, min, max, count) uniquely identifies a batch
// across retries.
func blockRangeToken(table string, min, max uint32, count int) string {
	return fmt.Sprintf("%s:%d:%d:%d", table, min, max, count)
}
