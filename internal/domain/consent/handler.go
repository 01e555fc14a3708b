package consent

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/matricare/matricare/internal/domain/role"
	"github.com/matricare/matricare/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("", auth.RequireRole(role.Mother))
	patient.POST("/consents", h.GrantConsent)
	patient.GET("/consents", h.ListConsents)
	patient.DELETE("/consents/:id", h.RevokeConsent)

	clinician := api.Group("", auth.RequireRole(role.Doctor, role.Nutritionist, role.Pharmacist))
	clinician.POST("/access-requests", h.RequestAccess)
}

type grantRequest struct {
	ClinicianID   string      `json:"clinician_id"`
	ExpiresInDays int         `json:"expires_in_days"`
	AccessLevel   AccessLevel `json:"access_level"`
}

func (h *Handler) GrantConsent(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	var req grantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ClinicianID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "clinician_id is required")
	}

	g, err := h.svc.Grant(c.Request().Context(), id.UserID, req.ClinicianID, req.ExpiresInDays, req.AccessLevel)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) ListConsents(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	grants, err := h.svc.ListForPatient(c.Request().Context(), id.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, grants)
}

func (h *Handler) RevokeConsent(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	consentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consent id")
	}

	g, err := h.svc.Revoke(c.Request().Context(), consentID, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "consent not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, g)
}

type accessRequestBody struct {
	PatientID string `json:"patient_id"`
	Message   string `json:"message"`
}

func (h *Handler) RequestAccess(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	var req accessRequestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}

	ar, err := h.svc.RequestAccess(c.Request().Context(), id.UserID, req.PatientID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ar)
}
