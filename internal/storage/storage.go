package storage

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Subdirectories under the media root, one per document kind.
const (
	DirProformas      = "proformas"
	DirPurchaseOrders = "purchase_orders"
	DirReceipts       = "receipts"
)

// Storage saves uploaded and generated documents under a single media root.
// Stored values are paths relative to the root; URLs are served from /media/.
type Storage struct {
	root string
}

// New creates the media root (and document subdirectories) if missing.
func New(root string) (*Storage, error) {
	for _, dir := range []string{DirProformas, DirPurchaseOrders, DirReceipts} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create media dir %s: %w", dir, err)
		}
	}
	return &Storage{root: root}, nil
}

// Root returns the absolute media root directory.
func (s *Storage) Root() string {
	return s.root
}

// AbsPath resolves a stored relative path to a filesystem path.
func (s *Storage) AbsPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// URL maps a stored relative path to its public /media/ URL.
func URL(rel string) string {
	if rel == "" {
		return ""
	}
	return "/media/" + rel
}

// SaveUpload persists a multipart upload into the given subdirectory and
// returns the relative path. Filenames get a random prefix so repeated
// uploads of the same name never collide.
func (s *Storage) SaveUpload(c *gin.Context, file *multipart.FileHeader, subdir string) (string, error) {
	name := sanitizeFilename(filepath.Base(file.Filename))
	rel := subdir + "/" + uuid.New().String()[:8] + "_" + name
	if err := c.SaveUploadedFile(file, s.AbsPath(rel)); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return rel, nil
}

// sanitizeFilename strips path separators and whitespace from client-supplied names
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '-'
		}
		return r
	}, name)
	if name == "" || name == "." {
		name = "upload"
	}
	return name
}
