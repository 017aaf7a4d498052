// Package blockfile provides file backends performing all device I/O in
// aligned blocks.
//
// Every read and write is served through device transfers whose offset and
// length are multiples of the configured block size. Requests not aligned
// to block boundaries are completed by reading the boundary blocks,
// patching them in memory and writing them back. The file keeps a logical
// size, which is what callers observe, and a physical size, the allocated
// device space, which runs ahead of the logical size as the allocation
// strategy dictates. Synchronize reconciles the stored file to the logical
// size, so external tools can take over from the exact committed state.
//
// An optional head buffer keeps the first bytes of the file in memory:
// database headers and allocation tables concentrate there, and serving
// them from memory removes the read-patch-write cycle from the hottest
// blocks. The buffer is written back on Synchronize and Close.
//
// Two variants expose the same engine. BlockParallelFile accepts concurrent
// data calls and promises per-call consistency only. BlockAtomicFile
// serializes everything and adds a critical-section API for multi-step
// sequences that must observe and mutate the file exclusively.
package blockfile
