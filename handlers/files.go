package handlers

import (
	"net/http"

	"planes_mejora_go/services"

	"github.com/labstack/echo/v4"
)

// UploadEvidenceHandler receives an evidence file for a seguimiento and
// stores it through the configured storage provider. Returns 201 with
// the public URL the entity pastes into evidencia_cumplimiento.
func UploadEvidenceHandler(c echo.Context) error {
	cfg := getConfig(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Archivo requerido")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if err := services.ValidateEvidenceUpload(fileHeader.Filename, contentType, fileHeader.Size, cfg.MaxUploadBytes()); err != nil {
		status := http.StatusUnsupportedMediaType
		if fileHeader.Size > cfg.MaxUploadBytes() {
			status = http.StatusRequestEntityTooLarge
		}
		return echo.NewHTTPError(status, err.Error())
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "No se pudo leer el archivo")
	}
	defer src.Close()

	key := services.GenerateEvidenceKey(cfg.EvidenceSubdir, fileHeader.Filename)
	result, err := services.Storage.UploadReader(c.Request().Context(), src, key, contentType, fileHeader.Size)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Error al guardar el archivo")
	}

	resp := map[string]string{
		"filename":     fileHeader.Filename,
		"content_type": contentType,
	}
	// R2 responses expose the public object, local storage a server path.
	if services.Storage.IsConfigured() && result.URL != "" && result.URL[0] != '/' {
		resp["public_url"] = result.URL
		resp["object_name"] = result.Key
	} else {
		resp["url"] = result.URL
	}
	return c.JSON(http.StatusCreated, resp)
}
