package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quarrydb/quarry/pkg/file"
	"github.com/quarrydb/quarry/pkg/file/blockfile"
	"github.com/quarrydb/quarry/pkg/file/stdfile"
)

// Global scope flags.
var (
	backend     string
	filePath    string
	iterations  int64
	opSize      int64
	threads     int
	blockSize   int64
	headBuffer  int64
	direct      bool
	syncAccess  bool
	allocInit   int64
	allocFactor float64
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "quarry-file-perf",
	Short: "Performance checker for quarry file backends",
	Long: `quarry-file-perf measures the throughput of the file backends under
sequential and random access patterns. Each run writes the requested number
of records per thread, reads them all back and reports the rates of both
phases.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&backend, "file", "parallel", "file backend: parallel, atomic or std")
	pf.StringVar(&filePath, "path", "quarry-perf.bin", "path of the work file")
	pf.Int64Var(&iterations, "iterations", 10000, "operations per thread and phase")
	pf.Int64Var(&opSize, "size", 8, "bytes per operation")
	pf.IntVar(&threads, "threads", 1, "concurrent worker routines")
	pf.Int64Var(&blockSize, "block-size", blockfile.DefaultBlockSize, "device block size of the block backends")
	pf.Int64Var(&headBuffer, "head-buffer", 1<<20, "head buffer size of the block backends, 0 disables it")
	pf.BoolVar(&direct, "direct", false, "open the device with O_DIRECT")
	pf.BoolVar(&syncAccess, "sync", false, "open the device with O_SYNC")
	pf.Int64Var(&allocInit, "alloc-init", 1<<20, "initial allocation of the block backends")
	pf.Float64Var(&allocFactor, "alloc-factor", 2, "allocation growth factor of the block backends")
	pf.BoolVar(&verbose, "verbose", false, "log backend internals")

	rootCmd.AddCommand(sequenceCmd, randomCmd)
}

func exitOnErr(cmd *cobra.Command, errFmt string, err error) {
	if err == nil {
		return
	}

	if errFmt != "" {
		err = fmt.Errorf(errFmt, err)
	}

	cmd.PrintErrln(err)
	os.Exit(1)
}

// newFile builds the backend selected by the --file flag.
func newFile(cmd *cobra.Command) file.File {
	log, err := newLogger()
	exitOnErr(cmd, "could not build logger: %w", err)

	var access blockfile.AccessOptions
	if direct {
		access |= blockfile.AccessDirect
	}
	if syncAccess {
		access |= blockfile.AccessSync
	}

	switch backend {
	case "parallel":
		f := blockfile.NewParallel(blockfile.WithLogger(log))
		exitOnErr(cmd, "invalid access strategy: %w", f.SetAccessStrategy(blockSize, headBuffer, access))
		exitOnErr(cmd, "invalid allocation strategy: %w", f.SetAllocationStrategy(allocInit, allocFactor))
		return f
	case "atomic":
		f := blockfile.NewAtomic(blockfile.WithLogger(log))
		exitOnErr(cmd, "invalid access strategy: %w", f.SetAccessStrategy(blockSize, headBuffer, access))
		exitOnErr(cmd, "invalid allocation strategy: %w", f.SetAllocationStrategy(allocInit, allocFactor))
		return f
	case "std":
		return stdfile.New(stdfile.WithLogger(log))
	default:
		exitOnErr(cmd, "", fmt.Errorf("unknown file backend %q", backend))
		return nil
	}
}

func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return c.Build(
		zap.AddStacktrace(zap.NewAtomicLevelAt(zap.FatalLevel)),
	)
}
