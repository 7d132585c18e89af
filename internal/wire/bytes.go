package wire

// Byte strings travel as a stop-bit unsigned length followed by the raw
// bytes. Unicode strings are UTF-8 byte strings; ASCII strings are byte
// strings that happen to stay below 0x80.

// AppendBytes appends the length-prefixed form of b to dst.
func AppendBytes(dst []byte, b []byte) []byte {
	dst = AppendUint(dst, uint64(len(b)))
	return append(dst, b...)
}

// ReadBytes decodes a length-prefixed byte string from the front of b.
// The returned slice aliases b; callers that retain it must copy.
func ReadBytes(b []byte) ([]byte, int, error) {
	l, n, err := ReadUint(b)
	if err != nil {
		return nil, 0, err
	}
	if l > uint64(len(b)-n) {
		return nil, 0, ErrTruncated
	}
	return b[n : n+int(l)], n + int(l), nil
}

// AppendBytesNullable appends the nullable form: the length shifts by one
// with 0 meaning absent.
func AppendBytesNullable(dst []byte, b []byte, absent bool) ([]byte, error) {
	if absent {
		return AppendUint(dst, 0), nil
	}
	dst = AppendUint(dst, uint64(len(b))+1)
	return append(dst, b...), nil
}

// ReadBytesNullable decodes a nullable length-prefixed byte string.
func ReadBytesNullable(b []byte) (val []byte, present bool, n int, err error) {
	l, n, err := ReadUint(b)
	if err != nil {
		return nil, false, 0, err
	}
	if l == 0 {
		return nil, false, n, nil
	}
	l--
	if l > uint64(len(b)-n) {
		return nil, false, 0, ErrTruncated
	}
	return b[n : n+int(l)], true, n + int(l), nil
}
