// Package sources reads the inspection documents named by the
// source_file column.
package sources

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrOutsideDir is returned for names that resolve outside the sources directory.
	ErrOutsideDir = errors.New("path escapes sources directory")
	// ErrNotFound is returned when the named document does not exist.
	ErrNotFound = errors.New("source document not found")
)

// Library resolves document names inside a single directory.
type Library struct {
	dir string
}

// NewLibrary returns a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Resolve returns the absolute path of name inside the library directory.
// Names are taken relative to the directory; absolute names and ".."
// segments that leave it are rejected.
func (l *Library) Resolve(name string) (string, error) {
	if l.dir == "" {
		return "", errors.New("sources directory is not configured")
	}
	if name == "" || filepath.IsAbs(name) {
		return "", ErrOutsideDir
	}

	root, err := filepath.Abs(l.dir)
	if err != nil {
		return "", fmt.Errorf("resolving sources directory: %w", err)
	}
	full := filepath.Join(root, name)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideDir
	}
	return full, nil
}

// Text extracts the plain text of the named document. PDFs are decoded
// page by page; any other file is returned as is.
func (l *Library) Text(name string) (string, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		return string(b), nil
	}
	return pdfText(path)
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
