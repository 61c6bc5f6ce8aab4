package services

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Evidence files accepted from entities. Spreadsheets and compressed
// bundles are allowed because entities attach signed scans and raw data.
var allowedEvidenceMimeTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/csv":                     true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/x-rar-compressed": true,
	"application/vnd.rar":          true,
	"application/x-7z-compressed":  true,
	"application/octet-stream":     true,
}

var allowedEvidenceExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".zip":  true,
	".rar":  true,
	".7z":   true,
}

// ValidateEvidenceUpload checks an incoming evidence file against the
// accepted type list and the size cap before anything touches storage.
func ValidateEvidenceUpload(filename, contentType string, size, maxBytes int64) error {
	if size > maxBytes {
		return fmt.Errorf("el archivo supera el tamaño máximo de %d MB", maxBytes/(1024*1024))
	}

	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	ext := strings.ToLower(filepath.Ext(filename))

	// Browsers sometimes send octet-stream for perfectly good files, so
	// octet-stream only passes when the extension is on the list too.
	if mime == "application/octet-stream" || mime == "" {
		if !allowedEvidenceExtensions[ext] {
			return fmt.Errorf("tipo de archivo no permitido: %s", ext)
		}
		return nil
	}

	if !allowedEvidenceMimeTypes[mime] {
		return fmt.Errorf("tipo de archivo no permitido: %s", mime)
	}
	if ext != "" && !allowedEvidenceExtensions[ext] {
		return fmt.Errorf("extensión de archivo no permitida: %s", ext)
	}
	return nil
}
