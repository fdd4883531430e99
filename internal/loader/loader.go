// Package loader reads knowledge files from disk and turns them into
// documents ready for indexing.
package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LangChat/ai-tutorials/internal/models"
)

const docIDPrefix = "file:"

// SupportedExtensions lists the file extensions the loader understands.
var SupportedExtensions = []string{
	".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt", ".rtf",
}

// DocumentID returns a stable document ID for the given absolute path.
// The same path always yields the same ID, so re-indexing a file replaces it.
func DocumentID(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return docIDPrefix + hex.EncodeToString(hash[:])
}

// IsSupported reports whether ext (with leading dot, any case) is handled.
func IsSupported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load reads the file at path and returns a document whose ID is derived
// from the absolute path. File name, directory, mtime and size are recorded
// in the metadata. Mtime (Unix nanoseconds) and size are stored as strings
// so they survive a JSON round trip without float64 precision loss.
func Load(path string) (*models.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("load %s: is a directory", abs)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text, err := ExtractBytes(content, filepath.Ext(abs))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(abs), err)
	}

	now := time.Now()
	return &models.Document{
		ID:      DocumentID(abs),
		Title:   filepath.Base(abs),
		Content: text,
		Metadata: map[string]interface{}{
			models.MetaFileName:              filepath.Base(abs),
			models.MetaAbsoluteDirectoryPath: filepath.Dir(abs),
			models.MetaSourcePath:            abs,
			models.MetaSourceMtime:           strconv.FormatInt(info.ModTime().UnixNano(), 10),
			models.MetaSourceSize:            strconv.FormatInt(info.Size(), 10),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ExtractBytes extracts text from content based on the extension, which
// should include the leading dot (e.g. ".pdf"). Unknown extensions are
// treated as plain text.
func ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".docx":
		return extractDOCX(content)
	case ".pptx":
		return extractPPTX(content)
	case ".odp", ".ods", ".odt":
		return extractOpenDocument(content)
	case ".rtf":
		return extractRTF(content)
	default:
		return extractPlain(content), nil
	}
}
