package blockfile

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/quarrydb/quarry/pkg/file"
)

func TestAtomicCriticalSection(t *testing.T) {
	f := NewAtomic()
	p := filepath.Join(t.TempDir(), "critical.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))

	require.NoError(t, f.Write(0, []byte("abc")))

	cs, size, err := f.Lock()
	require.NoError(t, err)
	require.EqualValues(t, 3, size)

	require.NoError(t, cs.Write(2, []byte("xyz")))
	require.NoError(t, cs.Write(5, []byte("123")))

	buf := make([]byte, 8)
	require.NoError(t, cs.Read(0, buf))
	require.Equal(t, []byte("abxyz123"), buf)

	size, err = cs.Unlock()
	require.NoError(t, err)
	require.EqualValues(t, 8, size)

	// the handle is spent after Unlock
	_, err = cs.Unlock()
	require.ErrorIs(t, err, file.ErrInvalidState)
	require.ErrorIs(t, cs.Read(0, buf), file.ErrInvalidState)
	require.ErrorIs(t, cs.Write(0, []byte("x")), file.ErrInvalidState)

	// the file itself is still usable
	require.NoError(t, f.Read(0, buf))
	require.Equal(t, []byte("abxyz123"), buf)

	require.NoError(t, f.Close())

	_, _, err = f.Lock()
	require.ErrorIs(t, err, file.ErrNotOpen)
}

func TestAtomicCriticalSectionCounter(t *testing.T) {
	f := NewAtomic()
	p := filepath.Join(t.TempDir(), "counter.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))

	require.NoError(t, f.Write(0, make([]byte, 8)))

	const (
		workers = 8
		rounds  = 200
	)

	// read-modify-write cycles under critical sections never lose updates
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			buf := make([]byte, 8)
			for j := 0; j < rounds; j++ {
				cs, _, err := f.Lock()
				if err != nil {
					return err
				}
				if err := cs.Read(0, buf); err != nil {
					_, _ = cs.Unlock()
					return err
				}
				binary.BigEndian.PutUint64(buf, binary.BigEndian.Uint64(buf)+1)
				if err := cs.Write(0, buf); err != nil {
					_, _ = cs.Unlock()
					return err
				}
				if _, err := cs.Unlock(); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	buf := make([]byte, 8)
	require.NoError(t, f.Read(0, buf))
	require.EqualValues(t, workers*rounds, binary.BigEndian.Uint64(buf))

	require.NoError(t, f.Close())
}

func TestAtomicCriticalSectionGrowth(t *testing.T) {
	f := NewAtomic()
	p := filepath.Join(t.TempDir(), "growth.bin")
	require.NoError(t, f.Open(p, true, file.OpenDefault))
	t.Cleanup(func() { _ = f.Close() })

	// appends performed through a critical section extend the size reported
	// by Unlock
	cs, size, err := f.Lock()
	require.NoError(t, err)
	require.Zero(t, size)

	require.NoError(t, cs.Write(0, []byte("0123456789")))
	require.NoError(t, cs.Write(100, []byte("tail")))

	size, err = cs.Unlock()
	require.NoError(t, err)
	require.EqualValues(t, 104, size)

	size, err = f.Size()
	require.NoError(t, err)
	require.EqualValues(t, 104, size)
}
