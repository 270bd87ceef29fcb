package documents

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/consent-templates", h.ListConsentTemplates)
	api.POST("/consent-templates", h.CreateConsentTemplate)
	api.GET("/consent-templates/:id", h.GetConsentTemplate)
	api.PUT("/consent-templates/:id", h.UpdateConsentTemplate)
	api.DELETE("/consent-templates/:id", h.DeleteConsentTemplate)

	api.POST("/consents", h.CreateConsent)
	api.GET("/consents/:id", h.GetConsent)
	api.GET("/patients/:id/consents", h.ListConsentsByPatient)

	api.GET("/text-templates", h.ListTextTemplates)
	api.POST("/text-templates", h.CreateTextTemplate)
	api.PUT("/text-templates/:id", h.UpdateTextTemplate)
	api.DELETE("/text-templates/:id", h.DeleteTextTemplate)
	api.POST("/text-templates/:id/render", h.RenderTextTemplate)
	api.POST("/text-templates/render", h.RenderBody)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrMissingPatient),
		errors.Is(err, ErrMissingSignature), errors.Is(err, ErrMissingSigner),
		errors.Is(err, ErrInvalidKind):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// -- Consent templates --

func (h *Handler) ListConsentTemplates(c echo.Context) error {
	out, err := h.svc.ListConsentTemplates(c.Request().Context(), c.QueryParam("all") == "true")
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetConsentTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	t, err := h.svc.GetConsentTemplate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateConsentTemplate(c echo.Context) error {
	var t ConsentTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = 0
	if err := h.svc.CreateConsentTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateConsentTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var t ConsentTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateConsentTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteConsentTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteConsentTemplate(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Informed consents --

func (h *Handler) CreateConsent(c echo.Context) error {
	var ic InformedConsent
	if err := c.Bind(&ic); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ic.ID = 0
	if err := h.svc.CreateConsent(c.Request().Context(), &ic); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": ic.ID})
}

func (h *Handler) GetConsent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ic, err := h.svc.GetConsent(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ic)
}

func (h *Handler) ListConsentsByPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, err := h.svc.ListConsentsByPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

// -- Text templates --

func (h *Handler) ListTextTemplates(c echo.Context) error {
	out, err := h.svc.ListTextTemplates(c.Request().Context(), c.QueryParam("kind"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateTextTemplate(c echo.Context) error {
	var t TextTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = 0
	if err := h.svc.CreateTextTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTextTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var t TextTemplate
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateTextTemplate(c.Request().Context(), &t); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTextTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTextTemplate(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RenderTextTemplate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var rc RenderContext
	if err := c.Bind(&rc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	text, err := h.svc.RenderTextTemplate(c.Request().Context(), id, rc)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (h *Handler) RenderBody(c echo.Context) error {
	var body struct {
		Body string `json:"body"`
		RenderContext
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"text": Render(body.Body, body.RenderContext)})
}
