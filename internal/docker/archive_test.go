package docker

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleFileArchiveRoundTrip(t *testing.T) {
	content := []byte("print('hello')\n")

	buf, err := singleFileArchive("a.py", content)
	require.NoError(t, err)

	got, err := extractSingleFile(buf, "/workspace/a.py")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSingleFileArchiveEmptyFile(t *testing.T) {
	buf, err := singleFileArchive("empty.txt", nil)
	require.NoError(t, err)

	got, err := extractSingleFile(buf, "/workspace/empty.txt")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractSingleFileDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "subdir/",
		Mode:     0o755,
		Typeflag: tar.TypeDir,
	}))
	require.NoError(t, tw.Close())

	_, err := extractSingleFile(buf, "/workspace/subdir")
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestExtractSingleFileEmptyStream(t *testing.T) {
	_, err := extractSingleFile(&bytes.Buffer{}, "/workspace/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
