package gelf

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// CompressType is the compression applied to a message payload before
// it goes out over UDP.  TCP transport never compresses.
type CompressType int

const (
	CompressGzip CompressType = iota
	CompressZlib
	CompressNone
)

func (c CompressType) String() string {
	switch c {
	case CompressGzip:
		return "gzip"
	case CompressZlib:
		return "zlib"
	case CompressNone:
		return "none"
	}
	return "unknown"
}

// ParseCompressType maps a configuration string onto a CompressType.
func ParseCompressType(s string) (CompressType, error) {
	switch s {
	case "gzip", "":
		return CompressGzip, nil
	case "zlib":
		return CompressZlib, nil
	case "none":
		return CompressNone, nil
	}
	return 0, fmt.Errorf("gelf: unknown compression type %q", s)
}

// compressPayload writes p into buf in the given compression format.
// For CompressNone the bytes are copied unchanged.  Compression is
// all-or-nothing; any error here aborts the send.
func compressPayload(buf *bytes.Buffer, p []byte, ct CompressType, level int) error {
	switch ct {
	case CompressGzip:
		zw, err := gzip.NewWriterLevel(buf, level)
		if err != nil {
			return fmt.Errorf("gzip.NewWriterLevel: %w", err)
		}
		if _, err = zw.Write(p); err != nil {
			zw.Close()
			return fmt.Errorf("gzip.Write: %w", err)
		}
		if err = zw.Close(); err != nil {
			return fmt.Errorf("gzip.Close: %w", err)
		}
	case CompressZlib:
		zw, err := zlib.NewWriterLevel(buf, level)
		if err != nil {
			return fmt.Errorf("zlib.NewWriterLevel: %w", err)
		}
		if _, err = zw.Write(p); err != nil {
			zw.Close()
			return fmt.Errorf("zlib.Write: %w", err)
		}
		if err = zw.Close(); err != nil {
			return fmt.Errorf("zlib.Close: %w", err)
		}
	case CompressNone:
		buf.Write(p)
	default:
		return fmt.Errorf("gelf: unknown compression type %d", ct)
	}
	return nil
}
