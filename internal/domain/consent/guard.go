package consent

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/matricare/matricare/internal/platform/auth"
)

// ConsentIDContextKey is where the guard stores the matched consent id for
// handlers that audit-log protected reads.
const ConsentIDContextKey = "matched_consent_id"

// RequireConsent guards any route parameterized by :patientId. The caller's
// id comes from the authenticated identity; patients always reach their own
// records, everyone else needs an active, unexpired grant. The check fails
// closed: missing identity, missing patient id or a ledger error all deny.
func RequireConsent(ledger *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			patientID := c.Param("patientId")
			if patientID == "" {
				return denyNoConsent(c)
			}

			// Patients do not need their own consent.
			if id.UserID == patientID {
				return next(c)
			}

			decision, err := ledger.IsAuthorized(c.Request().Context(), id.UserID, patientID)
			if err != nil || !decision.Authorized {
				return denyNoConsent(c)
			}

			c.Set(ConsentIDContextKey, decision.ConsentID)
			return next(c)
		}
	}
}

func denyNoConsent(c echo.Context) error {
	return c.JSON(http.StatusForbidden, Decision{
		Authorized: false,
		ReasonCode: ReasonNoActiveConsent,
	})
}
