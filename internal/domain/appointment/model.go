// Package appointment stores patient appointments as entities and notifies
// the counterpart on booking changes.
package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/matricare/matricare/internal/entity"
)

// TypeAppointment tags appointment entities.
const TypeAppointment = "appointment"

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
)

// Appointment is an appointment entity decoded into its typed form.
type Appointment struct {
	ID          uuid.UUID `json:"id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type appointmentPayload struct {
	DoctorID    string    `json:"doctorId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
}

func fromEntity(e *entity.Entity) (*Appointment, error) {
	var p appointmentPayload
	if err := e.Decode(&p); err != nil {
		return nil, err
	}
	return &Appointment{
		ID:          e.ID,
		PatientID:   e.Owner(),
		DoctorID:    p.DoctorID,
		ScheduledAt: p.ScheduledAt,
		Status:      p.Status,
		Notes:       p.Notes,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}, nil
}
