// Package mimetype maps file extensions to media types.
//
// A [Table] is static: it is assembled once at application start from the
// built-in defaults plus any overrides supplied by deployment configuration,
// and is read-only afterwards, so lookups need no locking.
package mimetype

import (
	"path"
	"strings"
)

// OctetStream is the media type for unknown binary content.
const OctetStream = "application/octet-stream"

// defaultTypes is keyed by lowercase extension including the leading dot.
var defaultTypes = map[string]string{
	// Web
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".mjs":  "text/javascript; charset=utf-8",
	".json": "application/json",
	".xml":  "application/xml",
	".txt":  "text/plain; charset=utf-8",
	".csv":  "text/csv",
	".wasm": "application/wasm",
	".map":  "application/json",
	// Images
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".tiff": "image/tiff",
	".ico":  "image/x-icon",
	".avif": "image/avif",
	// Fonts
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	// Documents
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".rtf":  "application/rtf",
	// Media
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	// Archives
	".zip": "application/zip",
	".gz":  "application/gzip",
	".tar": "application/x-tar",
	".jar": "application/java-archive",
}

// Table is an immutable extension to media type mapping.
type Table struct {
	types map[string]string
}

// Default returns a table holding only the built-in mappings.
func Default() *Table {
	return New(nil)
}

// New returns a table with the built-in mappings overlaid by overrides.
// Override keys may be given with or without the leading dot and in any case.
// An empty override value removes the built-in mapping for that extension.
func New(overrides map[string]string) *Table {
	types := make(map[string]string, len(defaultTypes)+len(overrides))
	for ext, typ := range defaultTypes {
		types[ext] = typ
	}
	for ext, typ := range overrides {
		ext = normalizeExt(ext)
		if ext == "" {
			continue
		}
		if typ == "" {
			delete(types, ext)
			continue
		}
		types[ext] = strings.TrimSpace(typ)
	}
	return &Table{types: types}
}

// Lookup returns the media type for the extension of file.
// File may be a bare name or a slash-separated path.
func (t *Table) Lookup(file string) (string, bool) {
	ext := path.Ext(path.Base(file))
	if ext == "" {
		return "", false
	}
	typ, ok := t.types[strings.ToLower(ext)]
	return typ, ok
}

// TypeOrDefault is Lookup with OctetStream for unknown extensions.
func (t *Table) TypeOrDefault(file string) string {
	if typ, ok := t.Lookup(file); ok {
		return typ
	}
	return OctetStream
}

// Len reports the number of known extensions.
func (t *Table) Len() int {
	return len(t.types)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
