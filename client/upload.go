package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxEvidenceBytes is the upload cap enforced before any bytes leave
// the machine. Must match the server's MAX_UPLOAD_MB.
const MaxEvidenceBytes = 5 * 1024 * 1024

var evidenceMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"application/pdf": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/csv":                     true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/x-rar-compressed": true,
	"application/x-7z-compressed":  true,
}

var evidenceExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".pdf": true, ".xls": true, ".xlsx": true, ".csv": true,
	".zip": true, ".rar": true, ".7z": true,
}

// UploadResult is the stored evidence location returned by the server.
type UploadResult struct {
	PublicURL   string `json:"public_url"`
	URL         string `json:"url"`
	ObjectName  string `json:"object_name"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Location returns whichever URL the server produced.
func (r *UploadResult) Location() string {
	if r.PublicURL != "" {
		return r.PublicURL
	}
	return r.URL
}

// UploadEvidence validates and uploads an evidence file for a
// seguimiento. Files failing the type or size checks are rejected
// locally with an UploadRejectedError.
func (c *Client) UploadEvidence(ctx context.Context, filename, contentType string, content io.Reader) (*UploadResult, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime := strings.ToLower(strings.TrimSpace(contentType))

	if !evidenceMimeTypes[mime] && !evidenceExtensions[ext] {
		return nil, &UploadRejectedError{
			Filename: filename,
			Reason:   "formatos permitidos: imágenes (JPG, PNG, GIF), PDF, Excel (XLS/XLSX/CSV) y comprimidos (ZIP, RAR, 7Z)",
		}
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxEvidenceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read evidence file: %w", err)
	}
	if len(data) > MaxEvidenceBytes {
		return nil, &UploadRejectedError{
			Filename: filename,
			Reason:   fmt.Sprintf("el archivo supera el límite de %d MB", MaxEvidenceBytes/(1024*1024)),
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename))}
	if mime != "" {
		header["Content-Type"] = []string{mime}
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}

	var result UploadResult
	err = c.do(ctx, http.MethodPost, "/files/upload", &body, writer.FormDataContentType(), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
