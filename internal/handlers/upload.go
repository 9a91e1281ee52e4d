package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Uploader is the narrow blob-storage collaborator surface: store a file,
// get back a stable URL plus an identifier usable for removal. The real
// media host lives behind this interface.
type Uploader interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (url string, id string, err error)
	Remove(ctx context.Context, id string) error
}

// LocalStorage keeps uploads under the public root and serves them from
// /public. It stands in for the media host in development.
type LocalStorage struct {
	root    string
	baseURL string
}

func NewLocalStorage(root, baseURL string) *LocalStorage {
	return &LocalStorage{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *LocalStorage) Upload(_ context.Context, file *multipart.FileHeader) (string, string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	name := hex.EncodeToString(buf) + filepath.Ext(file.Filename)
	relPath := "uploads/" + name

	dir := filepath.Join(s.root, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", "", err
	}

	return s.baseURL + "/" + relPath, relPath, nil
}

// Remove deletes a previous upload by identifier, refusing anything that
// resolves outside the uploads directory.
func (s *LocalStorage) Remove(_ context.Context, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")

	if !strings.HasPrefix(cleanRel, "uploads/") {
		return fmt.Errorf("refusing to delete non-upload path: %s", id)
	}

	cleanBase := filepath.Clean(s.root)
	targetPath := filepath.Join(cleanBase, filepath.FromSlash(cleanRel))
	cleanTarget := filepath.Clean(targetPath)
	if cleanTarget != cleanBase && !strings.HasPrefix(cleanTarget, cleanBase+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside storage root: %s", id)
	}

	if err := os.Remove(cleanTarget); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	return nil
}
