package indexer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hydration-network/hydrax/pkg/chain"
	"github.com/hydration-network/hydrax/pkg/db"
	"github.com/hydration-network/hydrax/pkg/db/models"
	"github.com/hydration-network/hydrax/pkg/gateway"
	core "github.com/hydration-network/hydrax/pkg/indexer"
	"github.com/hydration-network/hydrax/pkg/logging"
)

// shutdownTimeout bounds the final flush + checkpoint after the signal.
const shutdownTimeout = 10 * time.Second

type App struct {
	Logger   *zap.Logger
	Store    *db.DB
	Source   chain.Source
	Pipeline *core.Pipeline

	checkpointID string
}

// Options select the pipeline mode and block window.
type Options struct {
	FromBlock     *uint32 // nil: resume from checkpoint
	ToBlock       uint32  // 0: follow the head
	ReplayVolumes bool
}

// Initialize wires logging, the store, the block source, and the pipeline.
func Initialize(ctx context.Context, opts Options) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, stderr is all we have
		panic(err)
	}

	store, err := db.New(ctx, logger)
	if err != nil {
		return nil, err
	}

	cfg := core.ConfigFromEnv()
	if opts.ReplayVolumes {
		cfg.ReplayVolumes = true
		cfg.CheckpointID = models.CheckpointReplay
	}

	return &App{
		Logger:       logger,
		Store:        store,
		Source:       gateway.New(logger),
		Pipeline:     core.NewPipeline(logger, store, cfg),
		checkpointID: cfg.CheckpointID,
	}, nil
}

// Run resolves the start height and drives the source until completion or
// cancellation, then flushes and checkpoints. Returns (interrupted, err);
// interrupted means a clean signal-driven exit.
func (a *App) Run(ctx context.Context, opts Options) (bool, error) {
	from, err := a.startHeight(ctx, opts)
	if err != nil {
		return false, err
	}
	a.Logger.Info("starting pipeline",
		zap.Uint32("from_block", from),
		zap.Uint32("to_block", opts.ToBlock),
		zap.String("checkpoint", a.checkpointID),
		zap.Bool("replay_volumes", opts.ReplayVolumes))

	runErr := a.Source.Run(ctx, from, opts.ToBlock, a.Pipeline.HandleBatch)

	// The current block completed before the source returned; flush what is
	// buffered and record the final checkpoint under a fresh deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Pipeline.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("shutdown flush failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	if errors.Is(runErr, context.Canceled) {
		a.Logger.Info("interrupted, state flushed")
		return true, nil
	}
	return false, runErr
}

func (a *App) startHeight(ctx context.Context, opts Options) (uint32, error) {
	if opts.FromBlock != nil {
		return *opts.FromBlock, nil
	}
	lastBlock, found, err := a.Store.ReadCheckpoint(ctx, a.checkpointID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return lastBlock + 1, nil
}

func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("store close failed", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
