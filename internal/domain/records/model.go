// Package records maintains the single medical report each patient has. The
// report is a subtype-keyed entity, so there is exactly one row per patient
// and partial updates merge into it. Clinician reads and writes go through
// the consent guard.
package records

import (
	"time"

	"github.com/google/uuid"

	"github.com/matricare/matricare/internal/entity"
)

const (
	// TypeMedicalRecord tags medical record entities.
	TypeMedicalRecord = "medical_record"
	// SubtypeReport is the dedup key: one report per patient.
	SubtypeReport = "report"
)

// Report is a patient's medical report decoded into its typed form.
type Report struct {
	ID         uuid.UUID `json:"id"`
	PatientID  string    `json:"patient_id"`
	Summary    string    `json:"summary,omitempty"`
	BloodType  string    `json:"blood_type,omitempty"`
	Allergies  []string  `json:"allergies,omitempty"`
	Conditions []string  `json:"conditions,omitempty"`
	UpdatedBy  string    `json:"updated_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type reportPayload struct {
	Summary    string   `json:"summary,omitempty"`
	BloodType  string   `json:"bloodType,omitempty"`
	Allergies  []string `json:"allergies,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
	UpdatedBy  string   `json:"updatedBy,omitempty"`
}

func fromEntity(e *entity.Entity) (*Report, error) {
	var p reportPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	return &Report{
		ID:         e.ID,
		PatientID:  e.Owner(),
		Summary:    p.Summary,
		BloodType:  p.BloodType,
		Allergies:  p.Allergies,
		Conditions: p.Conditions,
		UpdatedBy:  p.UpdatedBy,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}, nil
}

// Patch is a partial report update; nil fields are left untouched by the
// merge.
type Patch struct {
	Summary    *string  `json:"summary,omitempty"`
	BloodType  *string  `json:"blood_type,omitempty"`
	Allergies  []string `json:"allergies,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
}

func (p Patch) payload(updatedBy string) map[string]any {
	data := map[string]any{"updatedBy": updatedBy}
	if p.Summary != nil {
		data["summary"] = *p.Summary
	}
	if p.BloodType != nil {
		data["bloodType"] = *p.BloodType
	}
	if p.Allergies != nil {
		data["allergies"] = p.Allergies
	}
	if p.Conditions != nil {
		data["conditions"] = p.Conditions
	}
	return data
}
