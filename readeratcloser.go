package ifcbpsd

import "io"

// ReaderAtCloser is a stream that can be scanned once from the start and then
// read at arbitrary offsets, as the line-indexed ADC reader needs.
type ReaderAtCloser interface {
	io.Reader
	io.ReaderAt
	io.Closer
}

type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}
