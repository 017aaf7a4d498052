package blockfile

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/quarrydb/quarry/pkg/file"
	"github.com/quarrydb/quarry/pkg/file/filetest"
)

func TestParallelGeneric(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		filetest.TestAll(t, func(t *testing.T) file.File { return NewParallel() })
	})

	t.Run("tuned", func(t *testing.T) {
		filetest.TestAll(t, func(t *testing.T) file.File {
			f := NewParallel()
			require.NoError(t, f.SetAccessStrategy(1024, 4096, AccessDefault))
			require.NoError(t, f.SetAllocationStrategy(8192, 1.5))
			return f
		})
	})
}

func TestAtomicGeneric(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		filetest.TestAll(t, func(t *testing.T) file.File { return NewAtomic() })
	})

	t.Run("tuned", func(t *testing.T) {
		filetest.TestAll(t, func(t *testing.T) file.File {
			f := NewAtomic()
			require.NoError(t, f.SetAccessStrategy(1024, 4096, AccessDefault))
			require.NoError(t, f.SetAllocationStrategy(8192, 1.5))
			return f
		})
	})
}

func TestFlags(t *testing.T) {
	require.False(t, NewParallel().IsAtomic())
	require.True(t, NewAtomic().IsAtomic())
	require.False(t, NewParallel().IsMemoryMapping())
	require.False(t, NewAtomic().IsMemoryMapping())
}

func TestStrategyValidation(t *testing.T) {
	f := NewParallel()

	require.ErrorIs(t, f.SetAccessStrategy(0, 0, AccessDefault), file.ErrOutOfRange)
	require.ErrorIs(t, f.SetAccessStrategy(500, 0, AccessDefault), file.ErrOutOfRange)
	require.ErrorIs(t, f.SetAccessStrategy(512, -1, AccessDefault), file.ErrOutOfRange)
	require.ErrorIs(t, f.SetAllocationStrategy(0, 2), file.ErrOutOfRange)
	require.ErrorIs(t, f.SetAllocationStrategy(-5, 2), file.ErrOutOfRange)
	require.ErrorIs(t, f.SetAllocationStrategy(100, 0.5), file.ErrOutOfRange)

	// multiples of the sector size are fine even when not powers of two
	require.NoError(t, f.SetAccessStrategy(1536, 512, AccessDefault))
	require.NoError(t, f.SetAllocationStrategy(4096, 1.0))
}

func TestStrategiesLockedWhileOpen(t *testing.T) {
	f := NewAtomic()
	p := filepath.Join(t.TempDir(), "strategies.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))

	require.ErrorIs(t, f.SetAccessStrategy(512, 0, AccessDefault), file.ErrInvalidState)
	require.ErrorIs(t, f.SetAllocationStrategy(1024, 2), file.ErrInvalidState)

	// strategies become settable again after Close
	require.NoError(t, f.Close())
	require.NoError(t, f.SetAccessStrategy(1024, 0, AccessDefault))
	require.NoError(t, f.SetAllocationStrategy(1024, 2))
}

func TestPhysicalSizeLifecycle(t *testing.T) {
	f := NewParallel()
	require.NoError(t, f.SetAllocationStrategy(4096, 2))
	p := filepath.Join(t.TempDir(), "phys.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))

	// the first write preallocates the initial extent
	require.NoError(t, f.Write(0, bytes.Repeat([]byte{1}, 700)))
	st, err := os.Stat(p)
	require.NoError(t, err)
	require.EqualValues(t, 4096, st.Size())

	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 700, size)

	// synchronizing trims the stored file to the exact logical size
	require.NoError(t, f.Synchronize(false))
	st, err = os.Stat(p)
	require.NoError(t, err)
	require.EqualValues(t, 700, st.Size())

	// growth resumes from the reconciled state; close reconciles again
	require.NoError(t, f.Write(700, bytes.Repeat([]byte{2}, 300)))
	st, err = os.Stat(p)
	require.NoError(t, err)
	require.EqualValues(t, 4096, st.Size())

	require.NoError(t, f.Close())
	st, err = os.Stat(p)
	require.NoError(t, err)
	require.EqualValues(t, 1000, st.Size())
}

func TestHeadBufferWriteBack(t *testing.T) {
	f := NewParallel()
	require.NoError(t, f.SetAccessStrategy(512, 2048, AccessDefault))
	require.NoError(t, f.SetAllocationStrategy(8192, 2))
	p := filepath.Join(t.TempDir(), "head.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))

	payload := bytes.Repeat([]byte{0xAB}, 600)
	require.NoError(t, f.Write(0, payload))

	// the write was absorbed by the head buffer: the device still holds the
	// preallocated zeros
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	require.EqualValues(t, 8192, len(raw))
	require.Equal(t, make([]byte, 600), raw[:600])

	// but reads already observe it
	got := make([]byte, 600)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, payload, got)

	// synchronize writes it back and reconciles the size
	require.NoError(t, f.Synchronize(false))
	raw, err = os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, payload, raw)

	require.NoError(t, f.Close())
}

func TestHeadBufferStraddle(t *testing.T) {
	f := NewParallel()
	require.NoError(t, f.SetAccessStrategy(512, 1024, AccessDefault))
	p := filepath.Join(t.TempDir(), "straddle.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	// one write straddling the head buffer boundary
	payload := bytes.Repeat([]byte{0xCD}, 2000)
	require.NoError(t, f.Write(600, payload))

	got := make([]byte, 2600)
	require.NoError(t, f.Read(0, got))
	require.Equal(t, make([]byte, 600), got[:600])
	require.Equal(t, payload, got[600:])

	// one read straddling it back
	sub := make([]byte, 1000)
	require.NoError(t, f.Read(500, sub))
	require.Equal(t, make([]byte, 100), sub[:100])
	require.Equal(t, payload[:900], sub[100:])
}

func TestParallelConcurrentMixed(t *testing.T) {
	f := NewParallel()
	require.NoError(t, f.SetAccessStrategy(512, 2048, AccessDefault))
	p := filepath.Join(t.TempDir(), "mixed.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	const fileSize = 1 << 16
	require.NoError(t, f.Truncate(fileSize))

	var eg errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		eg.Go(func() error {
			r := rand.New(rand.NewSource(int64(w)))
			chunk := bytes.Repeat([]byte{byte(w + 1)}, 777)
			for i := 0; i < 200; i++ {
				off := r.Int63n(fileSize - int64(len(chunk)))
				if err := f.Write(off, chunk); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for g := 0; g < 4; g++ {
		g := g
		eg.Go(func() error {
			r := rand.New(rand.NewSource(int64(100 + g)))
			buf := make([]byte, 900)
			for i := 0; i < 200; i++ {
				off := r.Int63n(fileSize - int64(len(buf)))
				if err := f.Read(off, buf); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	size, err := f.Size()
	require.NoError(t, err)
	require.EqualValues(t, fileSize, size)
}

func TestNextPhysical(t *testing.T) {
	c := &cfg{blockSize: 512, allocInit: 1024, allocFactor: 2}

	require.EqualValues(t, 1024, c.nextPhysical(0, 1))
	require.EqualValues(t, 2048, c.nextPhysical(1024, 1025))
	require.EqualValues(t, 4096, c.nextPhysical(2048, 2049))
	require.EqualValues(t, 10240, c.nextPhysical(2048, 10000))

	// factor 1.0 still moves forward
	c = &cfg{blockSize: 512, allocInit: 512, allocFactor: 1}
	require.EqualValues(t, 1024, c.nextPhysical(512, 513))
}

func TestAlign(t *testing.T) {
	require.EqualValues(t, 0, alignDown(511, 512))
	require.EqualValues(t, 512, alignDown(512, 512))
	require.EqualValues(t, 512, alignDown(1023, 512))
	require.EqualValues(t, 0, alignUp(0, 512))
	require.EqualValues(t, 512, alignUp(1, 512))
	require.EqualValues(t, 512, alignUp(512, 512))
	require.EqualValues(t, 1024, alignUp(513, 512))
	require.EqualValues(t, 3072, alignUp(2049, 1536))
}
