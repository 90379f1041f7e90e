// Package extract turns an uploaded file into plain document text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file is too large")
	ErrEmptyDocument        = errors.New("document contains no text")
	ErrInvalidEncoding      = errors.New("text file is not valid UTF-8")
)

// DefaultExtensions are the upload types accepted when none are configured.
var DefaultExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".md"}

// localExtensions are read directly instead of going through the remote
// extraction endpoint.
var localExtensions = map[string]bool{".txt": true, ".md": true}

// Remote extracts text from binary document formats.
type Remote interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

type Extractor struct {
	remote   Remote
	allowed  map[string]bool
	maxBytes int64
}

// New returns an extractor accepting the given extensions (with or without
// the leading dot) up to maxBytes. A zero maxBytes disables the size check.
func New(remote Remote, extensions []string, maxBytes int64) *Extractor {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &Extractor{remote: remote, allowed: allowed, maxBytes: maxBytes}
}

// Validate checks the file name and size without reading the content.
func (e *Extractor) Validate(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !e.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	if e.maxBytes > 0 && size > e.maxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, e.maxBytes)
	}
	return nil
}

// Extract validates the upload and returns its trimmed text.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if err := e.Validate(filename, int64(len(data))); err != nil {
		return "", err
	}

	var text string
	if localExtensions[strings.ToLower(filepath.Ext(filename))] {
		if !utf8.Valid(data) {
			return "", ErrInvalidEncoding
		}
		text = strings.TrimPrefix(string(data), "\uFEFF")
	} else {
		if e.remote == nil {
			return "", fmt.Errorf("%w: no extraction service configured", ErrUnsupportedExtension)
		}
		var err error
		text, err = e.remote.Extract(ctx, filename, data)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", filename, err)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}
