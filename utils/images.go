package utils

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrUnsupportedImage rejects uploads that are not png or jpeg.
var ErrUnsupportedImage = errors.New("unsupported image type")

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
}

// ImageStore writes uploaded product images to disk and removes them when a
// product is deleted or its image replaced.
type ImageStore struct {
	dir string
}

// NewImageStore creates an image store rooted at dir.
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{dir: dir}
}

// Save stores an uploaded image under a generated name and returns the path
// to record on the product.
func (s *ImageStore) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext, ok := imageExtensions[header.Header.Get("Content-Type")]
	if !ok {
		return "", ErrUnsupportedImage
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image directory: %w", err)
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}

// Delete removes a stored image. A missing file is not an error; the goal
// state is already reached.
func (s *ImageStore) Delete(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
