package render

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"coupon-share-service/internal/apperr"

	"github.com/fogleman/gg"
)

// AssetStore provides background art and static fallback images.
type AssetStore interface {
	Background(name string) (image.Image, error)
	Raw(name string) ([]byte, error)
}

// DirAssets serves assets from a directory. Decoded backgrounds are kept in
// memory after the first load.
type DirAssets struct {
	dir    string
	mu     sync.RWMutex
	images map[string]image.Image
}

func NewDirAssets(dir string) *DirAssets {
	return &DirAssets{dir: dir, images: make(map[string]image.Image)}
}

// Background loads and decodes a PNG or JPEG asset.
func (a *DirAssets) Background(name string) (image.Image, error) {
	a.mu.RLock()
	img, ok := a.images[name]
	a.mu.RUnlock()
	if ok {
		return img, nil
	}

	path, err := a.path(name)
	if err != nil {
		return nil, err
	}

	img, err = gg.LoadImage(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.AssetNotFound(name, err)
		}
		return nil, fmt.Errorf("failed to decode asset %s: %w", name, err)
	}

	a.mu.Lock()
	a.images[name] = img
	a.mu.Unlock()
	return img, nil
}

// Raw returns the file bytes of an asset without decoding it.
func (a *DirAssets) Raw(name string) ([]byte, error) {
	path, err := a.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.AssetNotFound(name, err)
		}
		return nil, fmt.Errorf("failed to read asset %s: %w", name, err)
	}
	return data, nil
}

func (a *DirAssets) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", apperr.AssetNotFound(name, nil)
	}
	return filepath.Join(a.dir, name), nil
}
