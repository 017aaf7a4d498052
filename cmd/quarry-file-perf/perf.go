package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/internal/workpool"
	"github.com/quarrydb/quarry/pkg/file"
)

type phaseResult struct {
	name    string
	ops     int64
	bytes   int64
	elapsed time.Duration
}

// runPattern drives one full measurement: a write phase and a read phase over
// the offsets produced by the pattern. Each thread gets its own deterministic
// offset stream, so the read phase revisits exactly the offsets the write
// phase populated.
func runPattern(cmd *cobra.Command, name string, pattern func(thread int, r *rand.Rand) func(i int64) int64) {
	switch {
	case iterations <= 0:
		exitOnErr(cmd, "", fmt.Errorf("non-positive iterations %d", iterations))
	case opSize <= 0:
		exitOnErr(cmd, "", fmt.Errorf("non-positive operation size %d", opSize))
	case threads <= 0:
		exitOnErr(cmd, "", fmt.Errorf("non-positive thread count %d", threads))
	}

	f := newFile(cmd)
	exitOnErr(cmd, "could not open work file: %w", f.Open(filePath, true, file.OpenTruncate))

	region := iterations * int64(threads) * opSize
	exitOnErr(cmd, "could not size work file: %w", f.Truncate(region))

	total := iterations * int64(threads)

	writeElapsed := fanOut(cmd, total, func(thread int, tick func()) error {
		next := pattern(thread, rand.New(rand.NewSource(int64(thread))))
		buf := bytes.Repeat([]byte{byte(thread + 1)}, int(opSize))
		for i := int64(0); i < iterations; i++ {
			if err := f.Write(next(i), buf); err != nil {
				return err
			}
			tick()
		}
		return nil
	})

	readElapsed := fanOut(cmd, total, func(thread int, tick func()) error {
		next := pattern(thread, rand.New(rand.NewSource(int64(thread))))
		buf := make([]byte, opSize)
		for i := int64(0); i < iterations; i++ {
			if err := f.Read(next(i), buf); err != nil {
				return err
			}
			tick()
		}
		return nil
	})

	exitOnErr(cmd, "could not synchronize work file: %w", f.Synchronize(false))
	exitOnErr(cmd, "could not close work file: %w", f.Close())

	report(cmd, []phaseResult{
		{name: name + " write", ops: total, bytes: total * opSize, elapsed: writeElapsed},
		{name: name + " read", ops: total, bytes: total * opSize, elapsed: readElapsed},
	})
}

// fanOut spreads the work over the pool selected by --threads and waits for
// all of it to finish.
func fanOut(cmd *cobra.Command, total int64, work func(thread int, tick func()) error) time.Duration {
	bar := pb.New64(total)
	bar.Output = cmd.OutOrStdout()
	bar.Start()

	pool := newPool(cmd)
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		errs = make([]error, threads)
	)

	start := time.Now()
	for t := 0; t < threads; t++ {
		t := t
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			errs[t] = work(t, func() { bar.Increment() })
		})
		if err != nil {
			wg.Done()
			errs[t] = err
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	bar.Finish()

	for _, err := range errs {
		exitOnErr(cmd, "worker failed: %w", err)
	}

	return elapsed
}

func newPool(cmd *cobra.Command) workpool.Pool {
	if threads == 1 {
		return workpool.NewSynchronous()
	}

	pool, err := workpool.New(threads)
	exitOnErr(cmd, "could not create worker pool: %w", err)

	return pool
}

func report(cmd *cobra.Command, results []phaseResult) {
	out := tablewriter.NewWriter(cmd.OutOrStdout())
	out.SetHeader([]string{"Phase", "Ops", "Bytes", "Elapsed", "Ops/s", "MiB/s"})
	out.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range results {
		secs := r.elapsed.Seconds()
		out.Append([]string{
			r.name,
			strconv.FormatInt(r.ops, 10),
			strconv.FormatInt(r.bytes, 10),
			r.elapsed.Round(time.Millisecond).String(),
			fmt.Sprintf("%.0f", float64(r.ops)/secs),
			fmt.Sprintf("%.2f", float64(r.bytes)/secs/(1<<20)),
		})
	}

	out.Render()
}
