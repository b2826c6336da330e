package docker

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
)

// The container copy API moves file content as uncompressed tar streams.
// These helpers wrap and unwrap the single-entry archives the driver needs;
// archive/tar is the stdlib codec the SDK itself is defined against.

// singleFileArchive builds an in-memory tar stream containing one regular
// file named name with the given content.
func singleFileArchive(name string, content []byte) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return nil, fmt.Errorf("write tar content for %s: %w", name, err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalize tar for %s: %w", name, err)
	}
	return buf, nil
}

// extractSingleFile reads the first entry of a tar stream and returns its
// content. Directory entries map to ErrIsDirectory.
func extractSingleFile(r io.Reader, path string) ([]byte, error) {
	tr := tar.NewReader(r)
	hdr, err := tr.Next()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read archive for %s: %w", path, err)
	}
	if hdr.FileInfo().IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}
	data, err := io.ReadAll(tr)
	if err != nil {
		return nil, fmt.Errorf("extract %s from archive: %w", path, err)
	}
	return data, nil
}
