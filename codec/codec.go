// Package codec provides bidirectional value codecs between wire-facing
// fastwire field values and domain representations.
package codec

// Codec converts between the wire representation W and the domain
// representation D. Decode is the wire->domain direction.
type Codec[W, D any] interface {
	Decode(w W) (D, error)
	Encode(d D) (W, error)
}
