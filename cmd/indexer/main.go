package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	app "github.com/hydration-network/hydrax/app/indexer"
)

const exitInterrupted = 130

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		fromBlock     int64
		toBlock       uint32
		rollbackTo    int64
		detectGaps    bool
		replayVolumes bool
	)
	interrupted := false

	root := &cobra.Command{
		Use:           "hydrax-indexer",
		Short:         "Block-level USDT price and volume indexer for the Hydration DEX",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Options{ToBlock: toBlock, ReplayVolumes: replayVolumes}
			if fromBlock >= 0 {
				from := uint32(fromBlock)
				opts.FromBlock = &from
			}

			a, err := app.Initialize(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if rollbackTo >= 0 {
				return a.Store.RollbackToBlock(cmd.Context(), uint32(rollbackTo))
			}
			if detectGaps {
				gaps, err := a.Store.DetectGaps(cmd.Context())
				if err != nil {
					// Diagnostic command: report and exit 0 regardless.
					fmt.Fprintf(os.Stderr, "gap scan failed: %v\n", err)
					return nil
				}
				if len(gaps) == 0 {
					fmt.Println("no gaps")
					return nil
				}
				for _, gap := range gaps {
					fmt.Printf("gap: %d-%d (%d blocks)\n", gap.From, gap.To, gap.To-gap.From+1)
				}
				return nil
			}

			interrupted, err = a.Run(cmd.Context(), opts)
			return err
		},
	}

	root.Flags().Int64Var(&fromBlock, "from-block", -1, "start at this block, ignoring the checkpoint")
	root.Flags().Uint32Var(&toBlock, "to-block", 0, "stop after this block (0 = follow the head)")
	root.Flags().Int64Var(&rollbackTo, "rollback-to-block", -1, "delete all rows at height >= N, reset checkpoint to N-1, exit")
	root.Flags().BoolVar(&detectGaps, "detect-gaps", false, "scan the prices table for missing heights and report them")
	root.Flags().BoolVar(&replayVolumes, "replay-volumes", false, "re-derive volume rows using stored prices (use with --from-block/--to-block)")

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if interrupted {
		os.Exit(exitInterrupted)
	}
}
