package artifacts

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Bundle packs every artifact in dir into an in-memory ZIP archive, each
// entry stored under its base name with Deflate compression. The returned
// reader is positioned at the start of the archive. An empty or missing
// directory produces a valid archive with no entries.
func (s *Store) Bundle(dir string) (*bytes.Reader, error) {
	list, err := s.ListArtifacts(dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, a := range list {
		if err := s.addToZip(zw, a.Path, a.Name); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}

func (s *Store) addToZip(zw *zip.Writer, path, name string) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}
	return nil
}

// BundleName is the download file name for a job's archive.
func BundleName(date string) string {
	return fmt.Sprintf("sentinel2_superres_%s.zip", date)
}
