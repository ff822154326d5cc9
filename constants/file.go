package constants

import "strings"

// AllowedExtensions holds the capture file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedCapture reports whether the extension is an accepted capture format.
func IsAllowedCapture(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
