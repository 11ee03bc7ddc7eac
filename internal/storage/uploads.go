package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Allowed upload types keyed by detected MIME type, valued by file extension.
var (
	AvatarTypes = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
	}
	BannerTypes = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

type Uploads struct {
	dir        string
	publicPath string
	maxBytes   int64
}

func NewUploads(dir, publicPath string, maxBytes int64) *Uploads {
	return &Uploads{dir: dir, publicPath: strings.TrimRight(publicPath, "/"), maxBytes: maxBytes}
}

func (u *Uploads) Dir() string {
	return u.dir
}

// Save stores r under a random name inside folder after checking its real
// content type against allowed. It returns the public URL path of the file.
func (u *Uploads) Save(folder string, r io.Reader, allowed map[string]string) (string, error) {
	content, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(content) == 0 {
		return "", domain.NewValidationError("file", "is empty")
	}
	if int64(len(content)) > u.maxBytes {
		return "", domain.NewValidationError("file", fmt.Sprintf("exceeds %d bytes", u.maxBytes))
	}

	detected := mimetype.Detect(content).String()
	ext, ok := allowed[detected]
	if !ok {
		return "", domain.NewValidationError("file", fmt.Sprintf("type %s is not allowed", detected))
	}

	target := filepath.Join(u.dir, folder)
	if err := os.MkdirAll(target, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(target, name), content, 0o640); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path.Join(u.publicPath, folder, name), nil
}

// Remove deletes a file previously returned by Save. Unknown or foreign
// paths are ignored.
func (u *Uploads) Remove(publicURL string) error {
	if publicURL == "" || !strings.HasPrefix(publicURL, u.publicPath+"/") {
		return nil
	}
	rel := strings.TrimPrefix(publicURL, u.publicPath+"/")
	if strings.Contains(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
