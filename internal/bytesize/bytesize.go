// Package bytesize provides a byte count type that config files can spell
// in human units.
package bytesize

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize is a size in bytes that unmarshals from strings like "64MiB",
// "500Mi", "100MB" or plain numbers. Binary suffixes (Ki, Mi, Gi, Ti and
// their -B forms) are powers of 1024; decimal ones (K, M, G, T, KB, ...)
// are powers of 1000.
type ByteSize uint64

// Common byte size constants
const (
	B  ByteSize = 1
	KB ByteSize = humanize.KByte
	MB ByteSize = humanize.MByte
	GB ByteSize = humanize.GByte

	KiB ByteSize = humanize.KiByte
	MiB ByteSize = humanize.MiByte
	GiB ByteSize = humanize.GiByte
)

// ParseByteSize parses a human-readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}

// MarshalText writes the size in binary units so it round-trips through
// ParseByteSize.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String returns the size in binary units, e.g. "64 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Int64 returns the size as an int64.
func (b ByteSize) Int64() int64 {
	return int64(b)
}
