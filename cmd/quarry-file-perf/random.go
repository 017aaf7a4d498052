package main

import (
	"math/rand"

	"github.com/spf13/cobra"
)

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Measure random access",
	Long: `Random writes records at uniformly distributed offsets of the work
file and reads the same offsets back. Offsets are not aligned to the record
size, so the block backends exercise their read-patch-write path.`,
	Run: runRandom,
}

func runRandom(cmd *cobra.Command, _ []string) {
	region := iterations * int64(threads) * opSize

	runPattern(cmd, "random", func(_ int, r *rand.Rand) func(i int64) int64 {
		return func(int64) int64 { return r.Int63n(region - opSize + 1) }
	})
}
