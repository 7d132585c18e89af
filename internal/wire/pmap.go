package wire

// PmapBuilder accumulates presence bits in field order during encoding.
// The zero value is ready to use.
type PmapBuilder struct {
	bits []bool
}

// Append records the next presence bit.
func (p *PmapBuilder) Append(bit bool) { p.bits = append(p.bits, bit) }

// Len returns the number of bits recorded so far.
func (p *PmapBuilder) Len() int { return len(p.bits) }

// Reset clears the builder for reuse.
func (p *PmapBuilder) Reset() { p.bits = p.bits[:0] }

// AppendTo serializes the recorded bits to dst: ceil(n/7) bytes, 7 usable
// bits per byte packed most-significant-first, stop bit on the final byte.
// An empty builder still emits the single stop byte so the segment remains
// self-delimiting.
func (p *PmapBuilder) AppendTo(dst []byte) []byte {
	n := len(p.bits)
	nbytes := (n + 6) / 7
	if nbytes == 0 {
		nbytes = 1
	}
	start := len(dst)
	for i := 0; i < nbytes; i++ {
		dst = append(dst, 0)
	}
	for i, bit := range p.bits {
		if bit {
			dst[start+i/7] |= 1 << (6 - uint(i%7))
		}
	}
	dst[len(dst)-1] |= stopBit
	return dst
}

// Pmap is a decoded presence map. Bits beyond the transmitted run read as
// zero, matching the transfer-encoding rule that absent bits are absent
// fields.
type Pmap struct {
	data []byte
}

// ReadPmap scans b for a stop-bit terminated presence map and returns it
// along with the number of bytes consumed. It fails with ErrPresenceMap
// when the buffer ends first.
func ReadPmap(b []byte) (Pmap, int, error) {
	for i := 0; i < len(b); i++ {
		if b[i]&stopBit != 0 {
			return Pmap{data: b[:i+1]}, i + 1, nil
		}
	}
	return Pmap{}, 0, ErrPresenceMap
}

// IsSet reports whether logical bit i of the map is set.
func (m Pmap) IsSet(i int) bool {
	if i < 0 || i/7 >= len(m.data) {
		return false
	}
	return m.data[i/7]&(1<<(6-uint(i%7))) != 0
}

// Len returns the number of usable bits physically present on the wire.
func (m Pmap) Len() int { return 7 * len(m.data) }
