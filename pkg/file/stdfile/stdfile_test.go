package stdfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/pkg/file"
	"github.com/quarrydb/quarry/pkg/file/filetest"
)

func TestGeneric(t *testing.T) {
	filetest.TestAll(t, func(t *testing.T) file.File { return New() })
}

func TestFlags(t *testing.T) {
	f := New()
	require.True(t, f.IsAtomic())
	require.False(t, f.IsMemoryMapping())
}

func TestCriticalSection(t *testing.T) {
	f := New()
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

	_, err = cs.Unlock()
	require.ErrorIs(t, err, file.ErrInvalidState)

	require.NoError(t, f.Close())

	_, _, err = f.Lock()
	require.ErrorIs(t, err, file.ErrNotOpen)
}
