package indexer

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/db"
	"github.com/hydration-network/hydrax/pkg/db/models"
	"github.com/hydration-network/hydrax/pkg/fixed"
	"github.com/hydration-network/hydrax/pkg/utils"
)

// Config carries the pipeline's tunables. Defaults come from the
// environment; the CLI overrides replay mode.
type Config struct {
	USDTAssetID          uint32
	SnapshotInterval     uint32
	SnapshotIntervalLive uint32
	BatchSize            int
	CheckpointID         string
	ReplayVolumes        bool
}

func ConfigFromEnv() Config {
	return Config{
		USDTAssetID:          utils.EnvUint32("USDT_ASSET_ID", 10),
		SnapshotInterval:     utils.EnvUint32("REGISTRY_SNAPSHOT_INTERVAL", 7200),
		SnapshotIntervalLive: utils.EnvUint32("REGISTRY_SNAPSHOT_INTERVAL_LIVE", 600),
		BatchSize:            utils.EnvInt("WRITE_BATCH_SIZE", 5000),
		CheckpointID:         models.CheckpointMain,
	}
}

// Pipeline turns batches of blocks into price/volume/metadata rows. Blocks
// are processed strictly in order; the component sequence within a block is
// fixed: cache update, change detection, state read, price resolution,
// volume extraction, merge, buffered write.
type Pipeline struct {
	logger *zap.Logger
	cfg    Config
	store  *db.DB

	cache    *PoolCache
	detector *Detector
	reader   *StateReader
	resolver *Resolver
	registry *Registry
	writer   *Writer

	lastPrices PriceMap
	lastSpec   uint32
	haveSpec   bool
	lastHash   string

	lastFinalized chain.Head

	replayPrices map[uint32]PriceMap
}

func NewPipeline(logger *zap.Logger, store *db.DB, cfg Config) *Pipeline {
	return &Pipeline{
		logger:   logger.Named("pipeline"),
		cfg:      cfg,
		store:    store,
		cache:    NewPoolCache(logger),
		detector: NewDetector(logger),
		reader:   NewStateReader(logger),
		resolver: NewResolver(logger, cfg.USDTAssetID),
		registry: NewRegistry(logger, cfg.SnapshotInterval, cfg.SnapshotIntervalLive),
		writer:   NewWriter(logger, store, cfg.BatchSize, cfg.CheckpointID),
	}
}

// HandleBatch is the chain.BatchHandler entry point.
func (p *Pipeline) HandleBatch(ctx context.Context, batch *chain.Batch) error {
	// Parent-hash tracking restarts per batch, so continuity across a batch
	// boundary is not checked here.
	p.lastHash = ""
	p.lastFinalized = batch.FinalizedHead

	if p.cfg.ReplayVolumes {
		if err := p.loadReplayPrices(ctx, batch); err != nil {
			return err
		}
	}

	for _, block := range batch.Blocks {
		var err error
		if p.cfg.ReplayVolumes {
			err = p.processReplayBlock(ctx, block, batch)
		} else {
			err = p.processBlock(ctx, block, batch)
		}
		if err != nil {
			return fmt.Errorf("block %d: %w", block.Height, err)
		}
		p.writer.NoteProcessed(block.Height)
		if err := p.writer.FlushIfFull(ctx); err != nil {
			return err
		}
	}

	if err := p.writer.Flush(ctx); err != nil {
		return err
	}
	return p.writer.Checkpoint(ctx, batch.FinalizedHead)
}

// Shutdown flushes whatever is buffered and records the final checkpoint.
// Called once after the source loop exits, with a bounded context.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if err := p.writer.Flush(ctx); err != nil {
		return err
	}
	return p.writer.Checkpoint(ctx, p.lastFinalized)
}

func (p *Pipeline) processBlock(ctx context.Context, block *chain.Block, batch *chain.Batch) error {
	if p.lastHash != "" && block.ParentHash != p.lastHash {
		p.logger.Warn("parent hash mismatch",
			zap.Uint32("height", block.Height),
			zap.String("parent_hash", block.ParentHash),
			zap.String("previous_hash", p.lastHash))
	}
	p.lastHash = block.Hash

	if p.haveSpec && block.SpecVersion != p.lastSpec {
		p.logger.Info("runtime upgrade",
			zap.Uint32("height", block.Height),
			zap.Uint32("spec_version", block.SpecVersion),
			zap.Uint32("prev_spec_version", p.lastSpec))
		p.writer.AddUpgrade(&models.RuntimeUpgrade{
			BlockHeight:     block.Height,
			SpecVersion:     block.SpecVersion,
			PrevSpecVersion: p.lastSpec,
		})
		// Storage migrations can reshape pool state without events.
		p.cache.InvalidateAll()
	}
	p.lastSpec = block.SpecVersion
	p.haveSpec = true

	p.writer.AddBlock(&models.Block{
		BlockHeight:    block.Height,
		BlockTimestamp: block.Timestamp.UTC(),
		SpecVersion:    block.SpecVersion,
	})

	compositionChanged := p.cache.ProcessEvents(block.Events)

	sudoWrite := p.detector.HasPoolStorageWrite(block.Calls)
	if sudoWrite {
		p.logger.Info("pool-affecting sudo storage write, caches invalidated",
			zap.Uint32("height", block.Height))
		p.cache.InvalidateAll()
	}

	live := block.Height >= batch.FinalizedHead.Height
	if rows := p.registry.MaybeScan(ctx, block, live); len(rows) > 0 {
		p.writer.AddAssets(rows)
	}

	full := sudoWrite || compositionChanged || p.lastPrices == nil
	if !full {
		full = p.detector.TouchesPoolAccount(block.Events, p.poolAccounts(ctx, block))
	}
	if !full {
		// Carry-forward: nothing in this block can have moved prices.
		return nil
	}

	state := p.reader.Read(ctx, block, p.cache)
	prices, err := p.resolver.Resolve(state, p.registry.Decimals)
	if err != nil {
		return err
	}

	swaps := DecodeSwaps(p.logger, block.Events, block.SpecVersion)
	volumes, err := ExtractVolumes(p.logger, swaps, prices, p.registry.Decimals)
	if err != nil {
		return err
	}

	p.writer.AddPrices(MergeRows(block.Height, prices, volumes))
	p.lastPrices = prices
	return nil
}

// poolAccounts collects every known pool sovereign account for the transfer
// scan. Cache lookups bootstrap on demand; a store that cannot bootstrap at
// this block simply contributes no accounts.
func (p *Pipeline) poolAccounts(ctx context.Context, block *chain.Block) map[chain.AccountID]struct{} {
	accounts := map[chain.AccountID]struct{}{OmnipoolAccount(): {}}
	if pools, ok := p.cache.XYKPools(ctx, block); ok {
		for _, pool := range pools {
			accounts[pool.PoolAccount] = struct{}{}
		}
	}
	if pools, ok := p.cache.StableswapPools(ctx, block); ok {
		for _, pool := range pools {
			accounts[StableswapPoolAccount(pool.PoolID)] = struct{}{}
		}
	}
	return accounts
}

// processReplayBlock re-derives volume rows for an already-indexed block,
// converting with the prices stored at the time. Price-only rows are left
// untouched; rows for traded assets are re-emitted with their stored price
// so the replacement keeps the price column intact.
func (p *Pipeline) processReplayBlock(ctx context.Context, block *chain.Block, batch *chain.Batch) error {
	live := block.Height >= batch.FinalizedHead.Height
	if rows := p.registry.MaybeScan(ctx, block, live); len(rows) > 0 {
		p.writer.AddAssets(rows)
	}

	swaps := DecodeSwaps(p.logger, block.Events, block.SpecVersion)
	if len(swaps) == 0 {
		return nil
	}

	prices := p.replayPrices[block.Height]
	volumes, err := ExtractVolumes(p.logger, swaps, prices, p.registry.Decimals)
	if err != nil {
		return err
	}

	traded := make(PriceMap, len(volumes))
	for asset := range volumes {
		if price, ok := prices[asset]; ok {
			traded[asset] = price
		}
	}
	p.writer.AddPrices(MergeRows(block.Height, traded, volumes))
	return nil
}

// loadReplayPrices fetches the stored price snapshots covering the batch.
func (p *Pipeline) loadReplayPrices(ctx context.Context, batch *chain.Batch) error {
	if len(batch.Blocks) == 0 {
		return nil
	}
	from := batch.Blocks[0].Height
	to := batch.Blocks[len(batch.Blocks)-1].Height
	rows, err := p.store.LoadPrices(ctx, from, to)
	if err != nil {
		return err
	}

	p.replayPrices = make(map[uint32]PriceMap)
	for _, row := range rows {
		prices, ok := p.replayPrices[row.BlockHeight]
		if !ok {
			prices = PriceMap{}
			p.replayPrices[row.BlockHeight] = prices
		}
		v, overflow := uint256.FromBig(row.UsdtPrice.Shift(fixed.Scale).BigInt())
		if overflow {
			return fmt.Errorf("stored price out of range: asset %d block %d", row.AssetID, row.BlockHeight)
		}
		prices[row.AssetID] = v
	}
	return nil
}
