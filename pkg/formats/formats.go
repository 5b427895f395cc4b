package formats

import "bytes"

// Format identifies a supported file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatGVC
	FormatRSM
)

// String returns the conventional file extension without the dot.
func (f Format) String() string {
	switch f {
	case FormatGVC:
		return "gvc"
	case FormatRSM:
		return "rsm"
	default:
		return "unknown"
	}
}

// Detect identifies the format of data by its magic bytes.
func Detect(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, []byte(gvcMagic)):
		return FormatGVC
	case bytes.HasPrefix(data, []byte("GRSM")):
		return FormatRSM
	default:
		return FormatUnknown
	}
}
