package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matricare/matricare/internal/domain/notification"
	"github.com/matricare/matricare/internal/entity"
)

// ErrNotFound is returned when an appointment does not exist or belongs to
// another patient.
var ErrNotFound = errors.New("appointment not found")

// Notifier delivers best-effort booking notifications.
type Notifier interface {
	Notify(ctx context.Context, targetUserID string, msg notification.Message) error
}

// Service books and cancels appointments. Notification failures are logged
// and never roll back the booking.
type Service struct {
	store    *entity.Store
	notifier Notifier
	log      zerolog.Logger
}

func NewService(store *entity.Store, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log}
}

// Book creates an appointment for the patient and notifies the doctor.
func (s *Service) Book(ctx context.Context, patientID, doctorID string, scheduledAt time.Time, notes string) (*Appointment, error) {
	if patientID == "" || doctorID == "" {
		return nil, fmt.Errorf("booking requires patient and doctor ids")
	}
	if scheduledAt.IsZero() {
		return nil, fmt.Errorf("booking requires a scheduled time")
	}

	e, err := s.store.Create(ctx, TypeAppointment, patientID, "", map[string]any{
		"doctorId":    doctorID,
		"scheduledAt": scheduledAt.Format(time.RFC3339Nano),
		"status":      string(StatusBooked),
		"notes":       notes,
	})
	if err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}

	s.bestEffortNotify(ctx, doctorID, notification.Message{
		Type:  "appointment_booked",
		Title: "New appointment",
		Body:  "A patient booked an appointment with you.",
		Link:  "/appointments/" + e.ID.String(),
	})

	return fromEntity(e)
}

// Cancel marks the patient's appointment cancelled and notifies the doctor.
func (s *Service) Cancel(ctx context.Context, patientID string, id uuid.UUID) (*Appointment, error) {
	updated, err := s.store.Update(ctx, id, TypeAppointment, patientID, map[string]any{
		"status": string(StatusCancelled),
	})
	if err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	appt, err := fromEntity(updated)
	if err != nil {
		return nil, err
	}

	s.bestEffortNotify(ctx, appt.DoctorID, notification.Message{
		Type:  "appointment_cancelled",
		Title: "Appointment cancelled",
		Body:  "A patient cancelled an appointment.",
		Link:  "/appointments/" + appt.ID.String(),
	})

	return appt, nil
}

// ListForPatient returns a page of the patient's appointments, oldest first.
func (s *Service) ListForPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, error) {
	entities, err := s.store.List(ctx, TypeAppointment, entity.Filter{
		OwnerID: patientID, Order: entity.OrderAsc, Limit: limit, Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	items := make([]*Appointment, 0, len(entities))
	for _, e := range entities {
		a, err := fromEntity(e)
		if err != nil {
			s.log.Warn().Err(err).Str("appointment_id", e.ID.String()).Msg("undecodable appointment skipped")
			continue
		}
		items = append(items, a)
	}
	return items, nil
}

func (s *Service) bestEffortNotify(ctx context.Context, userID string, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, msg); err != nil {
		s.log.Warn().Err(err).Str("target_user", userID).Str("type", msg.Type).
			Msg("appointment notification dropped")
	}
}
