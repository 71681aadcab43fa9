package filegate

import (
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// IsValidKey validates that a string can be used as a flat object key.
// It checks that the key:
//   - is not empty, "." or ".."
//   - is at most MaxKeyLength bytes
//   - does not contain a path separator (/ or \)
//   - is valid UTF-8
//   - does not contain null bytes, control characters (< 0x20) or DEL (0x7f)
//
// Without separators the only parent reference is ".." itself, so names such
// as "report..final.txt" are fine. Spaces are allowed since keys are derived
// from uploaded file names.
func IsValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}

	if len(key) > MaxKeyLength {
		return false
	}

	if strings.ContainsAny(key, `/\`) {
		return false
	}

	if !utf8.ValidString(key) {
		return false
	}

	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}

	return true
}

// HasAllowedExtension reports whether key ends with one of the given
// extensions. Comparison is case-insensitive and the leading dot is optional.
// An empty allow list permits every key.
func HasAllowedExtension(key string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}

	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return false
	}

	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if !strings.HasPrefix(a, ".") {
			a = "." + a
		}
		if a == ext {
			return true
		}
	}

	return false
}

// extensionTypes covers common extensions that are missing from Go's builtin
// table when the host has no mime.types file.
var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".text": "text/plain",
	".log":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".toml": "application/toml",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// TypeByKey returns the media type implied by the key's extension, without
// parameters, or "" when the extension is unknown.
func TypeByKey(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return ""
	}

	if t, ok := extensionTypes[ext]; ok {
		return t
	}

	return baseMediaType(mime.TypeByExtension(ext))
}

// ResolveContentType picks the content type recorded for a new object.
// Order of precedence: the key's extension, the client-declared type (unless
// it is the generic octet-stream), a sniff of head, then DefaultContentType.
func ResolveContentType(key, declared string, head []byte) string {
	if t := TypeByKey(key); t != "" {
		return t
	}

	if t := baseMediaType(declared); t != "" && t != DefaultContentType {
		return t
	}

	if len(head) > 0 {
		if t := baseMediaType(mimetype.Detect(head).String()); t != "" {
			return t
		}
	}

	return DefaultContentType
}

func baseMediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return ""
	}
	return mt
}
