// Package extractor extracts plain text from uploaded PDFs and images.
//
// PDFs are read with tabula. Images are decoded, normalised to PNG and passed
// to Tesseract through tabula/ocr, which is only functional when the binary is
// built with the "ocr" tag.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/ocr"
	_ "golang.org/x/image/bmp"  // register bmp decoder
	_ "golang.org/x/image/tiff" // register tiff decoder
)

// DefaultTimeout bounds a single extraction.
const DefaultTimeout = 30 * time.Second

var (
	// ErrUnsupportedFormat is returned for extensions outside the allowed list.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrTimeout is returned when extraction exceeds the configured timeout.
	ErrTimeout = errors.New("extraction timed out")
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".bmp": {}, ".gif": {}, ".tiff": {}, ".tif": {},
}

// IsSupported reports whether the filename has an extractable extension.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" {
		return true
	}
	_, ok := imageExtensions[ext]
	return ok
}

// Extractor turns uploaded files into text.
type Extractor struct {
	timeout     time.Duration
	ocrLanguage string
	tempDir     string

	pdfText   func(path string) (string, error)
	imageText func(png []byte, lang string) (string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout sets the per-file extraction timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithOCRLanguage sets the Tesseract language, e.g. "eng".
func WithOCRLanguage(lang string) Option {
	return func(e *Extractor) {
		if lang != "" {
			e.ocrLanguage = lang
		}
	}
}

// WithTempDir sets where PDF payloads are spooled before parsing.
func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		timeout:     DefaultTimeout,
		ocrLanguage: "eng",
		pdfText:     pdfText,
		imageText:   ocrText,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OCREnabled reports whether the binary was built with OCR support.
func OCREnabled() bool {
	client, err := ocr.New()
	if err != nil {
		return false
	}
	_ = client.Close()
	return true
}

type result struct {
	text string
	err  error
}

// Extract returns the text of data, dispatching on the filename extension.
// Empty payloads yield an empty string.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !IsSupported(filename) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if len(data) == 0 {
		logger.Warnw("Uploaded file is empty", "filename", filename)
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan result, 1)
	go func() {
		var r result
		if ext == ".pdf" {
			r.text, r.err = e.extractPDF(data)
		} else {
			r.text, r.err = e.extractImage(data)
		}
		done <- r
	}()

	select {
	case r := <-done:
		if r.err != nil {
			logger.Errorw("Text extraction failed", "filename", filename, "error", r.err)
			return "", r.err
		}
		logger.Debugw("Text extracted",
			"filename", filename,
			"chars", len(r.text),
			"duration", time.Since(start).String(),
		)
		return r.text, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Errorw("Text extraction timed out", "filename", filename, "timeout", e.timeout.String())
			return "", fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		return "", ctx.Err()
	}
}

func (e *Extractor) extractPDF(data []byte) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "docqa-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return e.pdfText(path)
}

func (e *Extractor) extractImage(data []byte) (string, error) {
	normalized, err := normalizeImage(data)
	if err != nil {
		return "", err
	}
	return e.imageText(normalized, e.ocrLanguage)
}

func pdfText(path string) (string, error) {
	text, warnings, err := tabula.Open(path).Text()
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	if len(warnings) > 0 {
		logger.Debugw("PDF extracted with warnings", "warnings", len(warnings))
	}
	return text, nil
}

func ocrText(img []byte, lang string) (string, error) {
	client, err := ocr.New()
	if err != nil {
		return "", fmt.Errorf("ocr unavailable: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set ocr language: %w", err)
	}
	text, err := client.RecognizeImage(img)
	if err != nil {
		return "", fmt.Errorf("recognize image: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// normalizeImage decodes any registered image format and re-encodes it as PNG.
func normalizeImage(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format == "png" {
		return data, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
