package ifcbpsd

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectDataType(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write([]byte("Biovolume,EquivDiameter\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	for _, v := range []struct {
		Input    []byte
		Expected DataType
	}{
		{gz.Bytes(), DataTypeGzip},
		{[]byte("Biovolume,EquivDiameter\n"), DataTypeNoCompression},
		{[]byte{0x42, 0x5a, 0x68, 0x39, 0x31, 0x41}, DataTypeBZip2},
		{[]byte("ab"), DataTypeNoCompression},
		{[]byte{}, DataTypeNoCompression},
	} {
		dt, err := DetectDataType(bytes.NewReader(v.Input))
		require.NoError(t, err)
		assert.Equal(t, v.Expected, dt)
	}
}

func TestMaybeDecompressReadCloser(t *testing.T) {
	dir := t.TempDir()
	body := "Biovolume,EquivDiameter\n1,2\n"

	plain := filepath.Join(dir, "plain.csv")
	require.NoError(t, os.WriteFile(plain, []byte(body), 0o644))

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	zipped := filepath.Join(dir, "zipped.csv.gz")
	require.NoError(t, os.WriteFile(zipped, gz.Bytes(), 0o644))

	for _, path := range []string{plain, zipped} {
		f, err := os.Open(path)
		require.NoError(t, err)

		rc, err := MaybeDecompressReadCloser(f)
		require.NoError(t, err)

		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, body, string(got), path)
		require.NoError(t, rc.Close())
	}
}

func TestPeekDelimiter(t *testing.T) {
	comma := "Biovolume,EquivDiameter,MajorAxisLength\n1,2,3\n4,5,6\n"
	br := bufio.NewReader(strings.NewReader(comma))

	assert.Equal(t, ',', PeekDelimiter(br))

	// Nothing was consumed
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "Biovolume,EquivDiameter,MajorAxisLength\n", line)
}

func TestDetermineDelimiterIgnoresUnderscore(t *testing.T) {
	// Header only: '_' and ',' are equally regular here.
	header := "roi_number,Biovolume,EquivDiameter,MajorAxisLength,MinorAxisLength\n"

	for i := 0; i < 50; i++ {
		assert.Equal(t, ',', DetermineDelimiter(strings.NewReader(header)))
	}

	assert.Equal(t, '\t', DetermineDelimiter(strings.NewReader("a_b\tc\n1\t2\n")))
	assert.Equal(t, ',', DetermineDelimiter(strings.NewReader("")))
}

func TestSplitGSPath(t *testing.T) {
	bucket, object, err := SplitGSPath("gs://ifcb-data/features/2021/D20210101T000000_IFCB1_fea_v2.csv")
	require.NoError(t, err)
	assert.Equal(t, "ifcb-data", bucket)
	assert.Equal(t, "features/2021/D20210101T000000_IFCB1_fea_v2.csv", object)

	_, _, err = SplitGSPath("gs://bucketonly")
	assert.Error(t, err)

	assert.True(t, IsGSPath("gs://x/y"))
	assert.False(t, IsGSPath("/data/x"))
}

func TestOpenPathAndReaderAtLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.adc")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	ra, err := OpenReaderAt(context.Background(), path, nil)
	require.NoError(t, err)
	defer ra.Close()

	buf := make([]byte, 3)
	_, err = ra.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "456", string(buf))

	_, err = OpenPath(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/data/ifcb", ExpandHome("/data/ifcb"))
	assert.Equal(t, "gs://b/o", ExpandHome("gs://b/o"))
	assert.False(t, strings.HasPrefix(ExpandHome("~/ifcb"), "~"))
}
