package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedExt = map[string]bool{
	".pdf":   true,
	".zip":   true,
	".nc":    true,
	".gcode": true,
	".tap":   true,
	".step":  true,
	".stp":   true,
	".stl":   true,
	".dxf":   true,
	".csv":   true,
	// Note: executables and HTML are intentionally excluded
}

// ValidateResourceBySniff checks the provided filename (extension) and the first
// bytes (head) against the whitelist of lesson resource types. Returns the
// detected mime or an error.
func ValidateResourceBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", errors.New("only the following resource formats are supported: PDF, ZIP, NC, GCODE, TAP, STEP, STL, DXF, CSV")
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", errors.New("invalid file type: HTML content is not allowed")
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", errors.New("SVG/XML uploads are not supported")
	}

	// G-code and CAD dumps usually sniff as plain text or octet-stream;
	// the extension whitelist is the real gate for those.
	return detected, nil
}
