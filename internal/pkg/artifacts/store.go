package artifacts

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/samirrijal/superres/internal/core/domain"
)

// ErrArtifactNotFound is returned when a requested file is not a listed artifact.
var ErrArtifactNotFound = errors.New("artifact not found")

// rasterExtensions are the recognised output extensions, lower-case, without dot.
var rasterExtensions = map[string]string{
	"tif":     "image/tiff",
	"tiff":    "image/tiff",
	"geotiff": "image/tiff",
	"png":     "image/png",
	"jpg":     "image/jpeg",
	"jpeg":    "image/jpeg",
}

const dirPerm = 0o755

// Store manages output directories on a filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store over the given filesystem.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOSStore creates a Store over the operating system filesystem.
func NewOSStore() *Store {
	return NewStore(afero.NewOsFs())
}

// Fs exposes the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// EnsureDirectory creates path and any missing parents. Existing contents
// are left untouched.
func (s *Store) EnsureDirectory(path string) (string, error) {
	if err := s.fs.MkdirAll(path, dirPerm); err != nil {
		return "", fmt.Errorf("create directory %s: %w", path, err)
	}
	return path, nil
}

// ResetDirectory destroys path and everything in it, then recreates it empty.
// A missing directory is simply created.
func (s *Store) ResetDirectory(path string) error {
	if err := s.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("remove directory %s: %w", path, err)
	}
	if err := s.fs.MkdirAll(path, dirPerm); err != nil {
		return fmt.Errorf("recreate directory %s: %w", path, err)
	}
	return nil
}

// ListArtifacts returns the raster files directly inside path, sorted by
// full path. A missing directory yields an empty result.
func (s *Store) ListArtifacts(path string) ([]domain.Artifact, error) {
	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return []domain.Artifact{}, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}

	out := make([]domain.Artifact, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsRaster(e.Name()) {
			continue
		}
		out = append(out, domain.Artifact{
			Name:        e.Name(),
			Path:        filepath.Join(path, e.Name()),
			Size:        e.Size(),
			SizeHuman:   FormatSize(e.Size()),
			ContentType: ContentType(e.Name()),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Open returns a listed artifact by base name together with an open handle.
// The caller closes the reader.
func (s *Store) Open(dir, name string) (io.ReadCloser, domain.Artifact, error) {
	if name == "" || name != filepath.Base(name) || !IsRaster(name) {
		return nil, domain.Artifact{}, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}

	list, err := s.ListArtifacts(dir)
	if err != nil {
		return nil, domain.Artifact{}, err
	}
	for _, a := range list {
		if a.Name != name {
			continue
		}
		f, err := s.fs.Open(a.Path)
		if err != nil {
			return nil, domain.Artifact{}, fmt.Errorf("open %s: %w", a.Path, err)
		}
		return f, a, nil
	}
	return nil, domain.Artifact{}, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
}

// TotalSize sums the sizes of the given artifacts.
func TotalSize(list []domain.Artifact) int64 {
	var total int64
	for _, a := range list {
		total += a.Size
	}
	return total
}

// IsRaster reports whether name carries a recognised raster extension.
func IsRaster(name string) bool {
	_, ok := rasterExtensions[extension(name)]
	return ok
}

// ContentType returns the download MIME type for a raster file name.
func ContentType(name string) string {
	if ct, ok := rasterExtensions[extension(name)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count with two decimals, scaling by 1024 until
// the value drops below 1024. Anything at or above 1024 GB is shown in TB.
func FormatSize(bytes int64) string {
	size := float64(bytes)
	for _, unit := range sizeUnits {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f TB", size)
}
