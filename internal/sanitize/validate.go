package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Validation errors for untrusted names and paths.
var (
	// ErrPathTraversal indicates a path contains directory traversal sequences.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrNotPDF indicates a path without a .pdf extension.
	ErrNotPDF = errors.New("not a .pdf file")

	// ErrInvalidName indicates a file name with nothing usable left.
	ErrInvalidName = errors.New("invalid file name")
)

// MaxSourceNameLength bounds names returned by SourceName, in bytes.
const MaxSourceNameLength = 255

// ValidatePath checks a path for security issues:
//   - No directory traversal (..)
//   - Resolves to absolute path and validates it stays within expected root
//   - Returns the cleaned, absolute path or an error
//
// If allowedRoot is empty, only traversal checks are performed.
func ValidatePath(path, allowedRoot string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}

	// Reject traversal before cleaning, which would silently resolve it.
	for _, part := range strings.FieldsFunc(path, isSeparator) {
		if part == ".." {
			return "", fmt.Errorf("%w: contains '..'", ErrPathTraversal)
		}
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if allowedRoot != "" {
		absRoot, err := filepath.Abs(allowedRoot)
		if err != nil {
			return "", fmt.Errorf("failed to resolve allowed root: %w", err)
		}
		rel, err := filepath.Rel(absRoot, absPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: path escapes allowed root", ErrPathTraversal)
		}
	}

	return absPath, nil
}

// ValidatePDFPath validates a path supplied by a tool call and requires a
// .pdf extension. Returns the cleaned absolute path.
func ValidatePDFPath(path string) (string, error) {
	abs, err := ValidatePath(path, "")
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(filepath.Ext(abs), ".pdf") {
		return "", fmt.Errorf("%w: %s", ErrNotPDF, filepath.Base(abs))
	}
	return abs, nil
}

// SourceName reduces an untrusted file name, such as a multipart upload
// name, to a display-safe base name. Both '/' and '\' count as separators,
// control characters are dropped and long names are truncated with a hash
// suffix, keeping the extension.
//
// Examples:
//
//	"C:\\Users\\me\\notes.pdf" -> "notes.pdf"
//	"../../etc/passwd"         -> "passwd"
//	"..", "" or "/"            -> ErrInvalidName
func SourceName(name string) (string, error) {
	parts := strings.FieldsFunc(name, isSeparator)
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	base := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, parts[len(parts)-1])
	base = strings.TrimSpace(base)

	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(base) > MaxSourceNameLength {
		ext := filepath.Ext(base)
		if len(ext) > 16 {
			ext = ""
		}
		base = truncateWithHash(strings.TrimSuffix(base, ext), MaxSourceNameLength-len(ext)) + ext
	}
	return base, nil
}

func isSeparator(r rune) bool { return r == '/' || r == '\\' }
