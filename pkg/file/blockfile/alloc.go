package blockfile

func alignDown(v, bs int64) int64 { return v - v%bs }

func alignUp(v, bs int64) int64 { return alignDown(v+bs-1, bs) }

// nextPhysical picks the new physical size when the file must cover need
// bytes: at least the configured initial allocation, at least the current
// size scaled by the growth factor, always block-aligned.
func (c *cfg) nextPhysical(current, need int64) int64 {
	next := need
	if scaled := int64(float64(current) * c.allocFactor); scaled > next {
		next = scaled
	}
	if c.allocInit > next {
		next = c.allocInit
	}
	return alignUp(next, c.blockSize)
}
