package ifcbpsd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// Decorates a Google Storage object handle with io.Reader, io.Seeker and
// io.Closer. Derived from
// https://github.com/googleapis/google-cloud-go/issues/1124#issuecomment-419070541
type GSReadSeekCloser struct {
	*storage.ObjectHandle
	Context context.Context
	r       *storage.Reader
	offset  int64 // offset at which the next range reader starts
}

func (s *GSReadSeekCloser) Read(buf []byte) (int, error) {
	var err error
	if s.r == nil {
		// -1 reads to the end of the object
		s.r, err = s.NewRangeReader(s.Context, s.offset, -1)
		if err != nil {
			return 0, err
		}
	}

	n, err := s.r.Read(buf)
	s.offset += int64(n)

	return n, err
}

// Seek supports rewinding and relative moves. Seeking is not actually
// possible on the object, so the current range reader is dropped and the next
// Read opens a new one at the requested offset.
func (s *GSReadSeekCloser) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64

	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = s.offset + offset
	default:
		return 0, fmt.Errorf("io.Seeker 'whence' value %d is not implemented", whence)
	}

	if newOffset < 0 {
		return 0, fmt.Errorf("negative offset %d", newOffset)
	}

	if s.r != nil {
		s.r.Close()
		s.r = nil
	}
	s.offset = newOffset

	return s.offset, nil
}

func (s *GSReadSeekCloser) Close() error {
	if s.r != nil {
		err := s.r.Close()
		s.r = nil
		return err
	}

	return nil
}

// SplitGSPath splits gs://bucket/some/object into its bucket and object name.
func SplitGSPath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 {
		return "", "", fmt.Errorf("Tried to split your google storage path into 2 parts, but got %d: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// IsGSPath reports whether path refers to Google Storage.
func IsGSPath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// OpenPath opens a local file, or a Google Storage object when the path starts
// with gs:// and a client is available.
func OpenPath(ctx context.Context, path string, client *storage.Client) (ReadSeekCloser, error) {
	if client != nil && IsGSPath(path) {
		bucketName, pathName, err := SplitGSPath(path)
		if err != nil {
			return nil, err
		}

		handle := client.Bucket(bucketName).Object(pathName)

		// Make a hard call so a missing object fails here rather than at
		// the first Read
		if _, err := handle.Attrs(ctx); err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return &GSReadSeekCloser{
			ObjectHandle: handle,
			Context:      ctx,
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}
