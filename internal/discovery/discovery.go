// Package discovery turns an asset folder into catalog entries: every
// sub-directory is an animation and every image file is a static image.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"assetprep/internal/asset"
	"assetprep/internal/media"
	"assetprep/internal/textutil"
)

// Entry is one asset found in a folder.
type Entry struct {
	ID   string
	Path string
	Kind asset.Kind
}

// DeriveID returns the catalog ID for a source path: the base name without
// its image extension, normalised and case-folded.
func DeriveID(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if media.IsImageFile(base) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return textutil.SanitizeToken(base)
}

// Scan lists folder's direct children in name order. Hidden entries and
// files that are not images are ignored. Two children deriving the same ID
// is an error since the catalog keys must be unique.
func Scan(folder string) ([]Entry, error) {
	children, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", folder, err)
	}
	entries := make([]Entry, 0, len(children))
	seen := make(map[string]string, len(children))
	for _, child := range children {
		name := child.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(folder, name)
		kind := asset.KindAnimation
		if !child.IsDir() {
			if !media.IsImageFile(name) {
				continue
			}
			kind = asset.KindStaticImage
		}
		id := DeriveID(path)
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("scan %s: %w: %q from %s and %s", folder, asset.ErrDuplicateID, id, prev, name)
		}
		seen[id] = name
		entries = append(entries, Entry{ID: id, Path: path, Kind: kind})
	}
	return entries, nil
}
