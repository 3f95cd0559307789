package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ochronus/gozenodo/internal/services/zenodo"
)

// DirStore resolves file identifiers to files below a root directory.
//
// An identifier is a slash-separated path relative to the root. A regular
// file is a single part. A directory holds the parts of a chunked file: its
// regular, non-hidden entries sorted by name. Identifiers escaping the root,
// also through symlinks, resolve to nothing.
type DirStore struct {
	root string
}

var _ zenodo.FileLookup = (*DirStore)(nil)

// NewDirStore creates a store rooted at root.
func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &DirStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *DirStore) Root() string {
	return s.root
}

// FilesByID returns the parts stored under fileID. Unknown identifiers
// yield no parts and no error.
func (s *DirStore) FilesByID(fileID string) ([]zenodo.PhysicalFile, error) {
	target, ok := s.resolve(fileID)
	if !ok {
		return nil, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to stat %s: %w", fileID, err)
	}

	if info.Mode().IsRegular() {
		return []zenodo.PhysicalFile{{Path: target, Name: info.Name(), Size: info.Size()}}, nil
	}
	if !info.IsDir() {
		return nil, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", fileID, err)
	}

	var parts []zenodo.PhysicalFile
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") || !entry.Type().IsRegular() {
			continue
		}
		partInfo, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("unable to stat %s/%s: %w", fileID, entry.Name(), err)
		}
		parts = append(parts, zenodo.PhysicalFile{
			Path: filepath.Join(target, entry.Name()),
			Name: entry.Name(),
			Size: partInfo.Size(),
		})
	}

	sort.Slice(parts, func(i, j int) bool {
		return parts[i].Name < parts[j].Name
	})
	return parts, nil
}

// AbsolutePath returns the filesystem path of a part.
func (s *DirStore) AbsolutePath(f zenodo.PhysicalFile) string {
	if filepath.IsAbs(f.Path) {
		return f.Path
	}
	return filepath.Join(s.root, f.Path)
}

func (s *DirStore) resolve(fileID string) (string, bool) {
	cleaned := path.Clean(strings.TrimLeft(strings.TrimSpace(fileID), "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	target := filepath.Join(s.root, filepath.FromSlash(cleaned))

	// Symlinks may point anywhere, so the resolved target must stay below
	// the resolved root.
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", false
	}
	if resolved == root || !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}
