// Package compress implements the storage-side compression gate of §4.3:
// GZIP applied to a plaintext chunk when the source file's MIME category
// looks compressible, kept only if it actually shrinks the record by at
// least 5%. The decision is recorded once, in a flag byte, so restore
// never re-sniffs.
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// Flag values recorded alongside a sealed record, consumed by Decode and
// nowhere else — restore is flag-driven, never heuristic.
const (
	FlagPlain byte = 0
	FlagGzip  byte = 1
)

// minReduction is the §4.3 threshold: GZIP output must be at least this
// fraction smaller than the plaintext to be kept.
const minReduction = 0.05

// compressibleExt maps common extensions to the compressible-category
// verdict when the standard mime package doesn't already classify them by
// major type (text/*, application/json, application/xml, ...).
var compressibleExt = map[string]bool{
	".csv":  true,
	".md":   true,
	".log":  true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".ini":  true,
	".go":   true,
	".py":   true,
	".c":    true,
	".h":    true,
	".java": true,
	".rs":   true,
	".sql":  true,
}

// LooksCompressible reports whether path's inferred MIME category is one
// this module attempts to compress (text, source, json, xml, csv, ...),
// or true when no category hint is available at all — §4.3 treats an
// unknown type as "attempt compression" rather than "skip it".
func LooksCompressible(path string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return true
	}

	if compressibleExt[strings.ToLower(ext)] {
		return true
	}

	ctype := mime.TypeByExtension(ext)
	if ctype == "" {
		return true
	}

	major, _, _ := strings.Cut(ctype, "/")
	switch major {
	case "text":
		return true
	}
	switch {
	case strings.Contains(ctype, "json"), strings.Contains(ctype, "xml"),
		strings.Contains(ctype, "javascript"), strings.Contains(ctype, "csv"):
		return true
	}
	return false
}

// Encode attempts GZIP on plaintext when candidate is true, keeping the
// compressed form only if it is at least 5% smaller. It returns the bytes
// to seal and the flag byte to record alongside them.
func Encode(plaintext []byte, candidate bool) (out []byte, flag byte, err error) {
	if !candidate || len(plaintext) == 0 {
		return plaintext, FlagPlain, nil
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(plaintext); err != nil {
		return nil, 0, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, 0, fmt.Errorf("gzip close: %w", err)
	}

	compressed := buf.Bytes()
	if float64(len(compressed)) > float64(len(plaintext))*(1-minReduction) {
		return plaintext, FlagPlain, nil
	}
	return compressed, FlagGzip, nil
}

// Decode reverses Encode using the recorded flag, never re-inspecting the
// data itself.
func Decode(data []byte, flag byte) ([]byte, error) {
	switch flag {
	case FlagPlain:
		return data, nil
	case FlagGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip reader: %w", err)
		}
		defer r.Close()

		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading gzip stream: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression flag %d", flag)
	}
}
