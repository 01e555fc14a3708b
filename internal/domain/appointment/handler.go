package appointment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/matricare/matricare/internal/domain/role"
	"github.com/matricare/matricare/internal/platform/auth"
	"github.com/matricare/matricare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := api.Group("", auth.RequireRole(role.Mother))
	patient.POST("/appointments", h.BookAppointment)
	patient.GET("/appointments", h.ListAppointments)
	patient.POST("/appointments/:id/cancel", h.CancelAppointment)
}

type bookRequest struct {
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       string    `json:"notes"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	appt, err := h.svc.Book(c.Request().Context(), id.UserID, req.DoctorID, req.ScheduledAt, req.Notes)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	items, err := h.svc.ListForPatient(c.Request().Context(), id.UserID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), pg))
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())

	apptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	appt, err := h.svc.Cancel(c.Request().Context(), id.UserID, apptID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, appt)
}
