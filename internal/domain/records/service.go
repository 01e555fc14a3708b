package records

import (
	"context"
	"fmt"

	"github.com/matricare/matricare/internal/entity"
)

// Service reads and patches patient medical reports.
type Service struct {
	store *entity.Store
}

func NewService(store *entity.Store) *Service {
	return &Service{store: store}
}

// Get returns the patient's report or nil when none has been written yet.
func (s *Service) Get(ctx context.Context, patientID string) (*Report, error) {
	e, err := s.store.GetBySubtype(ctx, TypeMedicalRecord, patientID, SubtypeReport)
	if err != nil {
		return nil, fmt.Errorf("load medical report: %w", err)
	}
	if e == nil {
		return nil, nil
	}
	return fromEntity(e)
}

// Upsert applies the patch to the patient's report, creating it on first
// write. Fields absent from the patch survive unchanged.
func (s *Service) Upsert(ctx context.Context, patientID, updatedBy string, patch Patch) (*Report, error) {
	e, err := s.store.UpsertBySubtype(ctx, TypeMedicalRecord, patientID, SubtypeReport, patch.payload(updatedBy))
	if err != nil {
		return nil, fmt.Errorf("upsert medical report: %w", err)
	}
	return fromEntity(e)
}
