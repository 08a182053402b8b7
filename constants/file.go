package constants

import "strings"

// AllowedExtensions holds the photo extensions the pipeline accepts.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is a supported photo type.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsHEICExt reports whether the photo needs converting before OCR.
func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif":
		return true
	}
	return false
}
