package image

import "bytes"

// MaxImageSize is the ceiling for a single stored image.
const MaxImageSize = 2 << 20

// Signature is the PNG file header.
var Signature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Verdict classifies a byte prefix against Signature.
type Verdict int

const (
	// NeedMore means the prefix agrees with Signature so far but is shorter than it.
	NeedMore Verdict = iota
	Match
	Mismatch
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "need_more"
	}
}

// Sniff inspects the leading bytes of a stream. Bytes past len(Signature) are ignored.
func Sniff(head []byte) Verdict {
	if len(head) >= len(Signature) {
		if bytes.Equal(head[:len(Signature)], Signature) {
			return Match
		}
		return Mismatch
	}
	if bytes.HasPrefix(Signature, head) {
		return NeedMore
	}
	return Mismatch
}

// OverLimit reports whether an accumulated size exceeds MaxImageSize.
func OverLimit(total int64) bool {
	return total > MaxImageSize
}
