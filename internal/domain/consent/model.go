// Package consent implements the consent ledger: time-boxed, revocable
// grants that let a named clinician read a named patient's protected
// records, plus the request-scoped access guard that evaluates them.
package consent

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matricare/matricare/internal/entity"
)

const (
	// TypeConsent tags consent grant entities.
	TypeConsent = "medical_consent"
	// TypeAccessRequest tags clinician access-request entities. Creating one
	// never grants access; it only notifies the patient.
	TypeAccessRequest = "medical_access_request"
)

// Status is the stored lifecycle state of a grant. There is no "expired"
// status: expiry is computed from ExpiresAt at read time, never written back.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// AccessLevel is an advisory scope tag. The guard treats any active,
// unexpired grant as full access.
type AccessLevel string

const (
	AccessFull    AccessLevel = "full"
	AccessLimited AccessLevel = "limited"
)

// ErrNotFound is returned when a consent does not exist or does not belong
// to the caller. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("consent not found")

// Grant is a consent entity decoded into its typed form.
type Grant struct {
	ID          uuid.UUID   `json:"id"`
	PatientID   string      `json:"patient_id"`
	ClinicianID string      `json:"clinician_id"`
	Status      Status      `json:"status"`
	AccessLevel AccessLevel `json:"access_level"`
	GrantedAt   time.Time   `json:"granted_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	RevokedAt   *time.Time  `json:"revoked_at,omitempty"`
}

// Expired reports whether the grant window has closed at the given time. A
// missing ExpiresAt means the grant does not expire.
func (g *Grant) Expired(at time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(at)
}

// grantPayload is the schemaless payload shape of a consent entity.
type grantPayload struct {
	ClinicianID string      `json:"clinicianId"`
	Status      Status      `json:"status"`
	AccessLevel AccessLevel `json:"accessLevel"`
	GrantedAt   time.Time   `json:"grantedAt"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time  `json:"revokedAt,omitempty"`
}

func grantFromEntity(e *entity.Entity) (*Grant, error) {
	var p grantPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	return &Grant{
		ID:          e.ID,
		PatientID:   e.Owner(),
		ClinicianID: p.ClinicianID,
		Status:      p.Status,
		AccessLevel: p.AccessLevel,
		GrantedAt:   p.GrantedAt,
		ExpiresAt:   p.ExpiresAt,
		RevokedAt:   p.RevokedAt,
	}, nil
}

// AccessRequest is a clinician's informational ask for access. Status stays
// pending; there is no accept path that converts one into a grant.
type AccessRequest struct {
	ID          uuid.UUID `json:"id"`
	PatientID   string    `json:"patient_id"`
	ClinicianID string    `json:"clinician_id"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReasonNoActiveConsent is the structured denial reason emitted by the
// access guard. Denials are never silent: this is a security boundary.
const ReasonNoActiveConsent = "no_active_consent"

// Decision is the outcome of an authorization check.
type Decision struct {
	Authorized bool   `json:"authorized"`
	ReasonCode string `json:"reason_code,omitempty"`
	ConsentID  string `json:"matched_consent_id,omitempty"`
}
