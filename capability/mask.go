package capability

// MaxCapabilities is the number of bits in a [Mask].
const MaxCapabilities = 64

// Mask is a set of capability bits.
type Mask uint64

// Has reports whether bit is set.
func (m Mask) Has(bit int) bool {
	if bit < 0 || bit >= MaxCapabilities {
		return false
	}
	return m&(1<<bit) != 0
}

// Set turns bit on.
func (m *Mask) Set(bit int) {
	if bit < 0 || bit >= MaxCapabilities {
		return
	}
	*m |= 1 << bit
}

// Clear turns bit off.
func (m *Mask) Clear(bit int) {
	if bit < 0 || bit >= MaxCapabilities {
		return
	}
	*m &^= 1 << bit
}

// Union returns the bits set in either mask.
func (m Mask) Union(o Mask) Mask {
	return m | o
}

// Raw returns the underlying integer.
func (m Mask) Raw() uint64 {
	return uint64(m)
}
