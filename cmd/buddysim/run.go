// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intruder29108/buddy-allocator/buddy"
	"github.com/intruder29108/buddy-allocator/cmd/buddysim/logger"
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

type simConfig struct {
	maxOrder  int
	pageSize  uint64
	startAddr uint64
	allocLoop int
	subLoop   int
	allocSize uint64
}

func newRunCmd() *cobra.Command {
	cfg := simConfig{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scripted sequence of allocations and frees",
		Long: `run allocates allocSize<<i bytes, sub-loop times, for each of
alloc-loop outer rounds, prints stats before, during and after the
run, then frees every successful allocation in reverse order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.allocSize < cfg.pageSize {
				return fmt.Errorf("alloc-size must be >= page-size (%d bytes)", cfg.pageSize)
			}
			return runSim(cfg)
		},
	}

	cmd.Flags().IntVar(&cfg.maxOrder, "max-order", 3, "highest order managed")
	cmd.Flags().Uint64Var(&cfg.pageSize, "page-size", 4096, "size of an order-0 block, in bytes")
	cmd.Flags().Uint64Var(&cfg.startAddr, "start-addr", 0, "base address of the managed range")
	cmd.Flags().IntVar(&cfg.allocLoop, "loop", 1, "number of outer allocation rounds")
	cmd.Flags().IntVar(&cfg.subLoop, "sub-loop", 1, "allocations performed per round")
	cmd.Flags().Uint64Var(&cfg.allocSize, "alloc-size", 4096, "bytes requested per allocation in round 0, doubled each round")

	return cmd
}

func runSim(cfg simConfig) error {
	a, err := buddy.New(buddy.Config{
		MaxOrder:  cfg.maxOrder,
		PageSize:  cfg.pageSize,
		StartAddr: cfg.startAddr,
	})
	if err != nil {
		return err
	}

	logger.Info("arena initialized",
		"max_order", cfg.maxOrder, "page_size", cfg.pageSize, "start_addr", cfg.startAddr)
	fmt.Print(renderStats(a.Stats()))

	var handles []*buddy.BlockHandle
	for i := 0; i < cfg.allocLoop; i++ {
		size := cfg.allocSize << uint(i)
		for j := 0; j < cfg.subLoop; j++ {
			h, err := a.Alloc(size)
			if err != nil {
				logger.Warn("allocation failed", "round", i, "size", size, "error", err)
				continue
			}
			logger.Debug("allocated",
				"round", i, "size", size, "order", h.Order(), "start_addr", h.StartAddr())
			handles = append(handles, h)
		}
	}

	fmt.Print(renderStats(a.Stats()))
	logger.Info("allocations complete", "succeeded", len(handles))

	// Free exactly what was allocated, in reverse order — the original
	// source's free loop read one past the end of its allocation array;
	// ranging over handles in reverse never does.
	for i := len(handles) - 1; i >= 0; i-- {
		if err := a.Free(handles[i]); err != nil {
			logger.Warn("free failed", "index", i, "error", err)
		}
	}

	fmt.Print(renderStats(a.Stats()))
	return nil
}
