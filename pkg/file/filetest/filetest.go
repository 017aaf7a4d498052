// Package filetest provides a conformance suite for file.File backends.
package filetest

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/quarrydb/quarry/pkg/file"
)

// Constructor constructs a file backend. Each call must return a fresh
// unopened object; paths are chosen by the tests themselves.
type Constructor = func(t *testing.T) file.File

// TestAll runs the whole conformance suite over the backend.
func TestAll(t *testing.T, cons Constructor) {
	t.Run("empty file", func(t *testing.T) { TestEmptyFile(t, cons) })
	t.Run("read write", func(t *testing.T) { TestReadWrite(t, cons) })
	t.Run("append", func(t *testing.T) { TestAppend(t, cons) })
	t.Run("expand", func(t *testing.T) { TestExpand(t, cons) })
	t.Run("truncate", func(t *testing.T) { TestTruncate(t, cons) })
	t.Run("persistence", func(t *testing.T) { TestPersistence(t, cons) })
	t.Run("reopen", func(t *testing.T) { TestReopen(t, cons) })
	t.Run("open options", func(t *testing.T) { TestOpenOptions(t, cons) })
	t.Run("errors", func(t *testing.T) { TestErrors(t, cons) })
	t.Run("rename", func(t *testing.T) { TestRename(t, cons) })
	t.Run("make file", func(t *testing.T) { TestMakeFile(t, cons) })
	t.Run("concurrent append", func(t *testing.T) { TestConcurrentAppend(t, cons) })
	t.Run("concurrent mixed", func(t *testing.T) { TestConcurrentMixed(t, cons) })
}

func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i%31)
	}
	return p
}

// TestEmptyFile checks the state cycle around an empty file.
func TestEmptyFile(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "empty.bin")

	require.False(t, f.IsOpen())
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	require.True(t, f.IsOpen())

	size, err := f.Size()
	require.NoError(t, err)
	require.Zero(t, size)

	got, err := f.Path()
	require.NoError(t, err)
	require.Equal(t, p, got)

	require.NoError(t, f.Read(0, nil))

	require.NoError(t, f.Close())
	require.False(t, f.IsOpen())
}

// TestReadWrite checks positional reads and writes against an in-memory
// mirror, deliberately landing on and around typical block boundaries.
func TestReadWrite(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	var want []byte
	put := func(off int64, data []byte) {
		require.NoError(t, f.Write(off, data))
		if end := off + int64(len(data)); end > int64(len(want)) {
			want = append(want, make([]byte, end-int64(len(want)))...)
		}
		copy(want[off:], data)
	}

	put(0, []byte("hello world"))
	put(5, []byte("-===-"))
	put(509, pattern(7, 0x11))     // crosses a 512 boundary
	put(512, pattern(512, 0x21))   // exactly one aligned block
	put(1500, pattern(2000, 0x31)) // gap before it must read as zeros
	put(4096, pattern(1, 0x41))

	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, len(want), size)

	got := make([]byte, len(want))
	require.NoError(t, f.Read(0, got))
	require.Equal(t, want, got)

	for _, r := range [][2]int64{{0, 11}, {5, 5}, {509, 7}, {510, 1030}, {1024, 476}, {4000, 97}} {
		sub := make([]byte, r[1])
		require.NoError(t, f.Read(r[0], sub))
		require.Equal(t, want[r[0]:r[0]+r[1]], sub, "range [%d:%d)", r[0], r[0]+r[1])
	}
}

// TestAppend checks that appends land back to back at the end.
func TestAppend(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "append.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	var want []byte
	for i := 0; i < 10; i++ {
		chunk := pattern(100+i*37, byte(i))
		off, err := f.Append(chunk)
		require.NoError(t, err)
		require.EqualValues(t, len(want), off)
		want = append(want, chunk...)
	}

	off, err := f.Append(nil)
	require.NoError(t, err)
	require.EqualValues(t, len(want), off)

	got := make([]byte, len(want))
	require.NoError(t, f.Read(0, got))
	require.Equal(t, want, got)
}

// TestExpand checks that expanding reserves a region without writing.
func TestExpand(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "expand.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	_, err := f.Append([]byte("abc"))
	require.NoError(t, err)

	off, err := f.Expand(1000)
	require.NoError(t, err)
	require.EqualValues(t, 3, off)

	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 1003, size)

	require.NoError(t, f.Write(off, []byte("xyz")))

	got := make([]byte, 1003)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, []byte("abcxyz"), got[:6])
	require.Equal(t, make([]byte, 997), got[6:])
}

// TestTruncate checks both shrinking and zero-exposing growth.
func TestTruncate(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "trunc.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	require.NoError(t, f.Write(0, []byte("0123456789")))

	require.NoError(t, f.Truncate(4))
	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 4, size)

	got := make([]byte, 4)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, []byte("0123"), got)
	require.ErrorIs(t, f.Read(0, make([]byte, 5)), file.ErrOutOfRange)

	require.NoError(t, f.Truncate(8))
	got = make([]byte, 8)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, []byte("0123\x00\x00\x00\x00"), got)

	require.NoError(t, f.Truncate(0))
	size, err = f.Size()
	require.NoError(t, err)
	require.Zero(t, size)

	require.NoError(t, f.Truncate(2048))
	got = make([]byte, 2048)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, make([]byte, 2048), got)
}

// TestPersistence checks that content committed by Synchronize and Close
// survives reopening, including through a read-only handle.
func TestPersistence(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "persist.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))

	want := pattern(3000, 0x55) // not a multiple of any block size
	require.NoError(t, f.Write(0, want))
	require.NoError(t, f.Synchronize(false))
	require.NoError(t, f.Close())

	f2 := cons(t)
	require.NoError(t, f2.Open(p, false, file.OpenDefault))

	size, err := f2.Size()
	require.NoError(t, err)
	require.EqualValues(t, len(want), size)

	got := make([]byte, len(want))
	require.NoError(t, f2.Read(0, got))
	require.Equal(t, want, got)

	require.ErrorIs(t, f2.Write(0, []byte("x")), file.ErrReadOnly)
	require.NoError(t, f2.Close())
}

// TestReopen checks that one object can cycle through open and close and
// keep serving the same path.
func TestReopen(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "reopen.bin")

	require.NoError(t, f.Open(p, true, file.OpenDefault))
	require.NoError(t, f.Write(0, []byte("first")))
	require.NoError(t, f.Close())

	require.NoError(t, f.Open(p, true, file.OpenDefault))
	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 5, size)

	require.NoError(t, f.Write(5, []byte(" second")))
	require.NoError(t, f.Close())

	require.NoError(t, f.Open(p, false, file.OpenDefault))
	got := make([]byte, 12)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, []byte("first second"), got)
	require.NoError(t, f.Close())
}

// TestOpenOptions checks the open flag matrix.
func TestOpenOptions(t *testing.T, cons Constructor) {
	dir := t.TempDir()

	t.Run("no create", func(t *testing.T) {
		f := cons(t)
		err := f.Open(filepath.Join(dir, "missing.bin"), true, file.OpenNoCreate)
		require.ErrorIs(t, err, file.ErrNotFound)
	})

	t.Run("read only missing", func(t *testing.T) {
		f := cons(t)
		err := f.Open(filepath.Join(dir, "missing.bin"), false, file.OpenDefault)
		require.ErrorIs(t, err, file.ErrNotFound)
	})

	t.Run("truncate", func(t *testing.T) {
		p := filepath.Join(dir, "trunc-open.bin")

		f := cons(t)
		require.NoError(t, f.Open(p, true, file.OpenDefault))
		_, err := f.Append(pattern(1000, 1))
		require.NoError(t, err)
		require.NoError(t, f.Close())

		f = cons(t)
		require.NoError(t, f.Open(p, true, file.OpenTruncate))
		size, err := f.Size()
		require.NoError(t, err)
		require.Zero(t, size)
		require.NoError(t, f.Close())
	})

	t.Run("no wait", func(t *testing.T) {
		p := filepath.Join(dir, "locked.bin")

		holder := cons(t)
		require.NoError(t, holder.Open(p, true, file.OpenDefault))
		t.Cleanup(func() { _ = holder.Close() })

		f := cons(t)
		err := f.Open(p, true, file.OpenNoWait)
		require.ErrorIs(t, err, file.ErrLockUnavailable)
	})

	t.Run("no lock", func(t *testing.T) {
		p := filepath.Join(dir, "unlocked.bin")

		a := cons(t)
		require.NoError(t, a.Open(p, true, file.OpenNoLock))
		b := cons(t)
		require.NoError(t, b.Open(p, true, file.OpenNoLock))
		require.NoError(t, b.Close())
		require.NoError(t, a.Close())
	})
}

// TestErrors checks the error kinds of misuse.
func TestErrors(t *testing.T, cons Constructor) {
	f := cons(t)

	require.ErrorIs(t, f.Read(0, make([]byte, 1)), file.ErrNotOpen)
	require.ErrorIs(t, f.Write(0, []byte("x")), file.ErrNotOpen)
	_, err := f.Append([]byte("x"))
	require.ErrorIs(t, err, file.ErrNotOpen)
	_, err = f.Size()
	require.ErrorIs(t, err, file.ErrNotOpen)
	require.ErrorIs(t, f.Synchronize(true), file.ErrNotOpen)
	require.ErrorIs(t, f.Close(), file.ErrNotOpen)

	p := filepath.Join(t.TempDir(), "errors.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	require.ErrorIs(t, f.Open(p, true, file.OpenDefault), file.ErrAlreadyOpen)

	require.NoError(t, f.Write(0, []byte("abc")))
	require.ErrorIs(t, f.Read(-1, make([]byte, 1)), file.ErrOutOfRange)
	require.ErrorIs(t, f.Read(2, make([]byte, 2)), file.ErrOutOfRange)
	require.ErrorIs(t, f.Write(-1, []byte("x")), file.ErrOutOfRange)
	require.ErrorIs(t, f.Truncate(-1), file.ErrOutOfRange)

	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Close(), file.ErrNotOpen)
}

// TestRename checks renaming under an open handle.
func TestRename(t *testing.T, cons Constructor) {
	dir := t.TempDir()
	from := filepath.Join(dir, "from.bin")
	to := filepath.Join(dir, "to.bin")

	f := cons(t)
	require.NoError(t, f.Open(from, true, file.OpenDefault))
	require.NoError(t, f.Write(0, []byte("payload")))
	require.NoError(t, f.Rename(to))

	got, err := f.Path()
	require.NoError(t, err)
	require.Equal(t, to, got)

	buf := make([]byte, 7)
	require.NoError(t, f.Read(0, buf))
	require.Equal(t, []byte("payload"), buf)

	require.NoError(t, f.Close())
	require.NoFileExists(t, from)
	require.FileExists(t, to)
}

// TestMakeFile checks the polymorphic constructor.
func TestMakeFile(t *testing.T, cons Constructor) {
	f := cons(t)

	nf := f.MakeFile()
	require.IsType(t, f, nf)
	require.False(t, nf.IsOpen())
	require.Equal(t, f.IsAtomic(), nf.IsAtomic())
	require.Equal(t, f.IsMemoryMapping(), nf.IsMemoryMapping())

	p := filepath.Join(t.TempDir(), "made.bin")
	require.NoError(t, nf.Open(p, true, file.OpenDefault))
	require.NoError(t, nf.Write(0, []byte("fresh")))
	require.NoError(t, nf.Close())
}

// TestConcurrentAppend checks that concurrent appends reserve disjoint
// regions and that every record lands intact.
func TestConcurrentAppend(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "concurrent.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	const (
		writers   = 8
		perWriter = 64
		recLen    = 97 // intentionally unaligned
	)

	offs := make([][]int64, writers)
	var eg errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		eg.Go(func() error {
			rec := bytes.Repeat([]byte{byte('A' + w)}, recLen)
			for i := 0; i < perWriter; i++ {
				off, err := f.Append(rec)
				if err != nil {
					return err
				}
				offs[w] = append(offs[w], off)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, writers*perWriter*recLen, size)

	seen := make(map[int64]struct{}, writers*perWriter)
	buf := make([]byte, recLen)
	for w := range offs {
		require.Len(t, offs[w], perWriter)
		for _, off := range offs[w] {
			_, dup := seen[off]
			require.False(t, dup, "offset %d reserved twice", off)
			seen[off] = struct{}{}
			require.Zero(t, off%recLen)

			require.NoError(t, f.Read(off, buf))
			require.Equal(t, bytes.Repeat([]byte{byte('A' + w)}, recLen), buf)
		}
	}
}

// TestConcurrentMixed checks that readers and writers can share a file of
// fixed size without errors or torn sizes. Every slot belongs to a single
// writer, so the final content is deterministic.
func TestConcurrentMixed(t *testing.T, cons Constructor) {
	f := cons(t)
	p := filepath.Join(t.TempDir(), "mixed.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	const (
		workers = 4
		rounds  = 50
		recLen  = 601 // intentionally unaligned
	)
	region := int64(workers * rounds * recLen)
	require.NoError(t, f.Truncate(region))

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			rec := bytes.Repeat([]byte{byte('a' + w)}, recLen)
			for i := 0; i < rounds; i++ {
				slot := int64(i*workers + w)
				if err := f.Write(slot*recLen, rec); err != nil {
					return err
				}
			}
			return nil
		})
		eg.Go(func() error {
			buf := make([]byte, recLen)
			for i := 0; i < rounds; i++ {
				if err := f.Read(int64(i)*recLen, buf); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	size, err := f.Size()
	require.NoError(t, err)
	require.Equal(t, region, size)

	buf := make([]byte, recLen)
	for i := 0; i < workers*rounds; i++ {
		require.NoError(t, f.Read(int64(i)*recLen, buf))
		require.Equal(t, bytes.Repeat([]byte{byte('a' + i%workers)}, recLen), buf, "slot %d", i)
	}
}
