package records

import (
	"net/http"

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

// RegisterRoutes mounts the protected record routes. The consent guard runs
// after the role check: a doctor still needs an active grant from the
// specific patient.
func (h *Handler) RegisterRoutes(api *echo.Group, guard echo.MiddlewareFunc) {
	allowed := auth.RequireRole(role.Mother, role.Doctor, role.Nutritionist)
	g := api.Group("/patients/:patientId/medical-record", allowed, guard)
	g.GET("", h.GetReport)
	g.PUT("", h.UpsertReport)
}

func (h *Handler) GetReport(c echo.Context) error {
	report, err := h.svc.Get(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if report == nil {
		return echo.NewHTTPError(http.StatusNotFound, "medical report not found")
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) UpsertReport(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := h.svc.Upsert(c.Request().Context(), c.Param("patientId"), id.UserID, patch)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
