// Package analysis provides document analyzers and the document classifier.
package analysis

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Locator schemes.
const (
	SchemeFile = "file"
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
)

var (
	// ErrUnsupportedLocator is returned for a locator no analyzer can read.
	ErrUnsupportedLocator = errors.New("unsupported document locator")
	// ErrNoText is returned when analysis finished but found no text.
	ErrNoText = errors.New("no text extracted from document")
)

// Locator is a parsed document address.
type Locator struct {
	Scheme string
	Bucket string // s3 and gs
	Key    string // s3 and gs
	Path   string // file
}

// ParseLocator parses s3://bucket/key, gs://bucket/object, file:///path
// and bare filesystem paths.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Locator{}, fmt.Errorf("%w: empty locator", ErrUnsupportedLocator)
	}

	if !strings.Contains(raw, "://") {
		return Locator{Scheme: SchemeFile, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("%w: %v", ErrUnsupportedLocator, err)
	}

	switch u.Scheme {
	case SchemeFile:
		if u.Path == "" {
			return Locator{}, fmt.Errorf("%w: file locator without path", ErrUnsupportedLocator)
		}
		return Locator{Scheme: SchemeFile, Path: u.Path}, nil
	case SchemeS3, SchemeGCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Locator{}, fmt.Errorf("%w: %s locator needs bucket and key", ErrUnsupportedLocator, u.Scheme)
		}
		return Locator{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	default:
		return Locator{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedLocator, u.Scheme)
	}
}

// String renders the locator back to its canonical form.
func (l Locator) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + l.Path
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

func mimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".txt":
		return "text/plain"
	default:
		return "application/pdf"
	}
}

func isText(data []byte) bool {
	return utf8.Valid(data) && !strings.ContainsRune(string(data), 0)
}
