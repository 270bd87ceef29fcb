package catalog

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
	g := api.Group("/catalog")
	g.GET("/procedure-templates", h.ListTemplates)
	g.PUT("/procedure-templates", h.SaveTemplates)
	g.GET("/diagnosis-options", h.ListDiagnosisOptions)
	g.PUT("/diagnosis-options", h.SaveDiagnosisOptions)
	g.GET("/signers", h.ListSigners)
	g.POST("/signers", h.CreateSigner)
	g.DELETE("/signers/:id", h.DeleteSigner)
	g.GET("/reason-types", h.ListReasonTypes)
	g.POST("/reason-types", h.CreateReasonType)
	g.GET("/payment-methods", h.ListPaymentMethods)
	g.POST("/payment-methods", h.CreatePaymentMethod)
	g.GET("/doctor-profile", h.GetDoctorProfile)
	g.PUT("/doctor-profile", h.UpsertDoctorProfile)

	api.GET("/settings", h.Settings)
	api.PUT("/settings/:key", h.SaveSetting)
	api.POST("/settings/reset", h.ResetSettings)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrMissingKey), errors.Is(err, ErrInvalidPrice):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

type nameBody struct {
	Name string `json:"name"`
}

func (h *Handler) ListTemplates(c echo.Context) error {
	out, err := h.svc.ListTemplates(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SaveTemplates(c echo.Context) error {
	var items []TemplateInput
	if err := c.Bind(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SaveTemplates(c.Request().Context(), items); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDiagnosisOptions(c echo.Context) error {
	out, err := h.svc.ListDiagnosisOptions(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SaveDiagnosisOptions(c echo.Context) error {
	var items []OptionInput
	if err := c.Bind(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SaveDiagnosisOptions(c.Request().Context(), items); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListSigners(c echo.Context) error {
	out, err := h.svc.ListSigners(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateSigner(c echo.Context) error {
	var body nameBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.CreateSigner(c.Request().Context(), body.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) DeleteSigner(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSigner(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListReasonTypes(c echo.Context) error {
	out, err := h.svc.ListReasonTypes(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateReasonType(c echo.Context) error {
	var body nameBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.CreateReasonType(c.Request().Context(), body.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) ListPaymentMethods(c echo.Context) error {
	out, err := h.svc.ListPaymentMethods(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CreatePaymentMethod(c echo.Context) error {
	var body nameBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.CreatePaymentMethod(c.Request().Context(), body.Name)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) GetDoctorProfile(c echo.Context) error {
	p, err := h.svc.GetDoctorProfile(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpsertDoctorProfile(c echo.Context) error {
	var p DoctorProfile
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.UpsertDoctorProfile(c.Request().Context(), &p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"id": id})
}

func (h *Handler) Settings(c echo.Context) error {
	out, err := h.svc.Settings(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) SaveSetting(c echo.Context) error {
	var body struct {
		Value    string `json:"value"`
		Category string `json:"category"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SaveSetting(c.Request().Context(), c.Param("key"), body.Value, body.Category); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ResetSettings(c echo.Context) error {
	if err := h.svc.ResetSettings(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
