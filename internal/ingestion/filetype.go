package ingestion

import (
	"errors"
	"mime"
	"net/url"
	"path"
	"strings"
)

// ErrUnsupportedFileType is returned for resumes that are not plain text.
// Binary formats such as PDF need OCR, which hiresync does not do.
var ErrUnsupportedFileType = errors.New("ingestion: unsupported file type (supported formats: TXT, MD)")

// supportedExtensions lists the accepted resume file extensions.
var supportedExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// SupportedFileType reports whether name (a file name, path or URL) has a
// plain-text resume extension.
func SupportedFileType(name string) bool {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Host != "" {
		name = u.Path
	}
	return supportedExtensions[strings.ToLower(path.Ext(name))]
}

// supportedContentType reports whether a Content-Type header names text.
// An empty header is accepted.
func supportedContentType(header string) bool {
	if header == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "text/")
}
