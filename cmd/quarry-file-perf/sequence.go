package main

import (
	"math/rand"

	"github.com/spf13/cobra"
)

var sequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Measure sequential access",
	Long: `Sequence writes back-to-back records and reads them back in the same
order. Every thread owns a disjoint contiguous region of the work file.`,
	Run: runSequence,
}

func runSequence(cmd *cobra.Command, _ []string) {
	runPattern(cmd, "sequence", func(thread int, _ *rand.Rand) func(i int64) int64 {
		base := int64(thread) * iterations * opSize
		return func(i int64) int64 { return base + i*opSize }
	})
}
