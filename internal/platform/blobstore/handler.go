package blobstore

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
)

// FileHandler exposes the file store over HTTP.
type FileHandler struct {
	store FileStore
}

func NewFileHandler(store FileStore) *FileHandler {
	return &FileHandler{store: store}
}

// RegisterRoutes mounts file routes on the supplied Echo group.
func (h *FileHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/attachment-files", h.handleUpload)
	g.GET("/attachment-files/resolve", h.handleResolve)
	g.GET("/attachment-files/*", h.handleDownload)
}

func (h *FileHandler) handleUpload(c echo.Context) error {
	patientID, err := strconv.ParseInt(c.FormValue("patient_id"), 10, 64)
	if err != nil || patientID < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if file.Size > MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error())
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	defer src.Close()

	stored, err := h.store.Save(c.Request().Context(), patientID, c.FormValue("date"), file.Filename, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ErrMissingFileName):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(http.StatusCreated, stored)
}

func (h *FileHandler) handleResolve(c echo.Context) error {
	p, err := h.store.Resolve(c.QueryParam("key"))
	if err != nil {
		return fileError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"path": p})
}

func (h *FileHandler) handleDownload(c echo.Context) error {
	key := c.Param("*")

	rc, err := h.store.Open(c.Request().Context(), key)
	if err != nil {
		return fileError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, path.Base(key)))
	return c.Stream(http.StatusOK, "application/octet-stream", rc)
}

func fileError(err error) error {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidKey):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
