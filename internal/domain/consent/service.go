package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matricare/matricare/internal/domain/notification"
	"github.com/matricare/matricare/internal/entity"
)

// Notifier delivers best-effort notifications for consent events. Delivery
// failure never fails the consent operation itself.
type Notifier interface {
	Notify(ctx context.Context, targetUserID string, msg notification.Message) error
}

// Service is the consent ledger. Grants are entities owned by the patient;
// authorization is evaluated fresh on every check with no cache, so a revoke
// is visible to the very next call.
type Service struct {
	store    *entity.Store
	notifier Notifier
	log      zerolog.Logger
	pageSize int
	now      func() time.Time
}

// NewService builds the ledger. notifier may be nil; pageSize bounds how
// many grants one authorization check will consider.
func NewService(store *entity.Store, notifier Notifier, log zerolog.Logger, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Service{store: store, notifier: notifier, log: log, pageSize: pageSize, now: time.Now}
}

// SetClock overrides the ledger's clock. Tests use this to pin time.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Grant records a new consent from patient to clinician, expiring after
// expiresInDays (0 or negative means no expiry). Existing grants to the same
// clinician are not checked: duplicates are allowed and each independently
// satisfies authorization.
func (s *Service) Grant(ctx context.Context, patientID, clinicianID string, expiresInDays int, level AccessLevel) (*Grant, error) {
	if patientID == "" || clinicianID == "" {
		return nil, fmt.Errorf("grant requires patient and clinician ids")
	}
	if level == "" {
		level = AccessFull
	}
	now := s.now()
	data := map[string]any{
		"clinicianId": clinicianID,
		"status":      string(StatusActive),
		"accessLevel": string(level),
		"grantedAt":   now.Format(time.RFC3339Nano),
	}
	if expiresInDays > 0 {
		data["expiresAt"] = now.AddDate(0, 0, expiresInDays).Format(time.RFC3339Nano)
	}

	e, err := s.store.Create(ctx, TypeConsent, patientID, "", data)
	if err != nil {
		return nil, fmt.Errorf("record consent grant: %w", err)
	}

	s.bestEffortNotify(ctx, clinicianID, notification.Message{
		Type:  "consent_granted",
		Title: "Access granted",
		Body:  "A patient has granted you access to their medical records.",
		Link:  "/patients/" + patientID,
	})

	return grantFromEntity(e)
}

// Revoke marks the grant revoked. Only the owning patient may revoke:
// anyone else gets ErrNotFound, the same answer as for a grant that does
// not exist.
func (s *Service) Revoke(ctx context.Context, consentID uuid.UUID, requestingPatientID string) (*Grant, error) {
	if requestingPatientID == "" {
		return nil, ErrNotFound
	}
	existing, err := s.store.Get(ctx, consentID, TypeConsent, requestingPatientID)
	if err != nil {
		return nil, fmt.Errorf("load consent: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	updated, err := s.store.Update(ctx, consentID, TypeConsent, requestingPatientID, map[string]any{
		"status":    string(StatusRevoked),
		"revokedAt": s.now().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("revoke consent: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	g, err := grantFromEntity(updated)
	if err != nil {
		return nil, err
	}

	s.bestEffortNotify(ctx, g.ClinicianID, notification.Message{
		Type:  "consent_revoked",
		Title: "Access revoked",
		Body:  "A patient has revoked your access to their medical records.",
	})

	return g, nil
}

// IsAuthorized reports whether the clinician currently holds an active,
// unexpired grant from the patient. The grant set is queried per pair and
// filtered at call time; expired rows stay in storage untouched. Any
// ambiguity denies.
func (s *Service) IsAuthorized(ctx context.Context, clinicianID, patientID string) (Decision, error) {
	deny := Decision{Authorized: false, ReasonCode: ReasonNoActiveConsent}
	if clinicianID == "" || patientID == "" {
		return deny, nil
	}

	entities, err := s.store.ListByField(ctx, TypeConsent, patientID, "clinicianId", clinicianID, s.pageSize)
	if err != nil {
		return deny, fmt.Errorf("load consents for patient: %w", err)
	}

	now := s.now()
	for _, e := range entities {
		g, err := grantFromEntity(e)
		if err != nil {
			s.log.Warn().Err(err).Str("consent_id", e.ID.String()).Msg("undecodable consent grant skipped")
			continue
		}
		if g.Status != StatusActive || g.Expired(now) {
			continue
		}
		return Decision{Authorized: true, ConsentID: g.ID.String()}, nil
	}
	return deny, nil
}

// RequestAccess records a clinician's ask for access and notifies the
// patient. It is informational only: the request stays pending and grants
// nothing.
func (s *Service) RequestAccess(ctx context.Context, clinicianID, patientID, message string) (*AccessRequest, error) {
	if clinicianID == "" || patientID == "" {
		return nil, fmt.Errorf("access request requires patient and clinician ids")
	}
	e, err := s.store.Create(ctx, TypeAccessRequest, patientID, "", map[string]any{
		"clinicianId": clinicianID,
		"status":      "pending",
		"message":     message,
	})
	if err != nil {
		return nil, fmt.Errorf("record access request: %w", err)
	}

	s.bestEffortNotify(ctx, patientID, notification.Message{
		Type:  "access_requested",
		Title: "Record access requested",
		Body:  "A clinician has requested access to your medical records.",
		Link:  "/consents",
	})

	return &AccessRequest{
		ID:          e.ID,
		PatientID:   patientID,
		ClinicianID: clinicianID,
		Message:     message,
		Status:      "pending",
		CreatedAt:   e.CreatedAt,
	}, nil
}

// ListForPatient returns every grant the patient has issued, newest first,
// including revoked and expired ones.
func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]*Grant, error) {
	entities, err := s.store.List(ctx, TypeConsent, entity.Filter{OwnerID: patientID, Order: entity.OrderDesc})
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	grants := make([]*Grant, 0, len(entities))
	for _, e := range entities {
		g, err := grantFromEntity(e)
		if err != nil {
			s.log.Warn().Err(err).Str("consent_id", e.ID.String()).Msg("undecodable consent grant skipped")
			continue
		}
		grants = append(grants, g)
	}
	return grants, nil
}

func (s *Service) bestEffortNotify(ctx context.Context, userID string, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, msg); err != nil {
		s.log.Warn().Err(err).Str("target_user", userID).Str("type", msg.Type).
			Msg("consent notification dropped")
	}
}
