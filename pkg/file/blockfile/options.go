package blockfile

import (
	"io/fs"

	"go.uber.org/zap"
)

// DefaultBlockSize is the block size access strategies start from. It
// matches the logical sector size of commodity storage.
const DefaultBlockSize = 512

// AccessOptions is a bit set tuning how the device is accessed. Values are
// combined with bitwise OR.
type AccessOptions uint32

const (
	// AccessDefault requests the default access behavior.
	AccessDefault AccessOptions = 0

	// AccessDirect bypasses the page cache. The block size must then
	// respect the alignment the device itself requires.
	AccessDirect AccessOptions = 1 << 0

	// AccessSync makes every device write synchronous, as if followed by a
	// hard Synchronize.
	AccessSync AccessOptions = 1 << 1
)

// Has reports whether all bits of flag are set in o.
func (o AccessOptions) Has(flag AccessOptions) bool { return o&flag == flag }

// Option is an option of a block file's constructor.
type Option func(*cfg)

type cfg struct {
	perm fs.FileMode

	log *zap.Logger

	blockSize   int64
	headBufSize int64
	access      AccessOptions

	allocInit   int64
	allocFactor float64
}

func defaultCfg() *cfg {
	return &cfg{
		perm:        0644,
		log:         zap.L(),
		blockSize:   DefaultBlockSize,
		allocInit:   1 << 20, // 1MB
		allocFactor: 2.0,
	}
}

// WithLogger returns option to specify the logger of lifecycle operations.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithPermissions returns option to specify permission bits of created
// files.
func WithPermissions(perm fs.FileMode) Option {
	return func(c *cfg) {
		c.perm = perm
	}
}
