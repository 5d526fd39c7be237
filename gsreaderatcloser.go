package ifcbpsd

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
)

// Decorates a Google Storage object handle with ReadAt, for random access to
// individual records of a large object without downloading all of it.
type GSReaderAtCloser struct {
	*GSReadSeekCloser
}

// ReadAt satisfies io.ReaderAt. Note that this is dependent upon making p a
// buffer of the desired length to be read by NewRangeReader.
func (o GSReaderAtCloser) ReadAt(p []byte, offset int64) (n int, err error) {
	rdr, err := o.NewRangeReader(o.Context, offset, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rdr.Close()

	return io.ReadFull(rdr, p)
}

// OpenReaderAt is OpenPath for callers that need random access.
func OpenReaderAt(ctx context.Context, path string, client *storage.Client) (ReaderAtCloser, error) {
	rsc, err := OpenPath(ctx, path, client)
	if err != nil {
		return nil, err
	}

	switch v := rsc.(type) {
	case *os.File:
		return v, nil
	case *GSReadSeekCloser:
		return GSReaderAtCloser{v}, nil
	}

	rsc.Close()
	return nil, fmt.Errorf("%s: %T does not support random access", path, rsc)
}
