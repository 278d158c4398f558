package constants

import "strings"

// Document formats the local extraction backend understands.
const (
	PDF         = "PDF"
	IMAGE       = "IMAGE"
	SPREADSHEET = "SPREADSHEET"
	TEXT        = "TEXT"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a document format; returns
// "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff", "bmp":
		return IMAGE
	case "xlsx", "xlsm", "xls":
		return SPREADSHEET
	case "txt", "csv", "md":
		return TEXT
	default:
		return ""
	}
}
