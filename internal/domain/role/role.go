// Package role defines the canonical role set used for every authorization
// decision in the platform, together with the alias table that maps the many
// historical spellings found in persisted data onto that set.
package role

import (
	"errors"
	"fmt"
	"strings"
)

// Role is a canonical platform role.
type Role string

const (
	Mother       Role = "mother"
	Doctor       Role = "doctor"
	Pharmacist   Role = "pharmacist"
	Nutritionist Role = "nutritionist"
	Merchandiser Role = "merchandiser"
	MedicalAdmin Role = "medical_admin"
	OpsAdmin     Role = "ops_admin"
	SystemAdmin  Role = "system_admin"
)

// ErrUnknownRole is returned by Parse for strings outside the canonical set
// and its alias table.
var ErrUnknownRole = errors.New("unknown role")

var canonical = map[Role]bool{
	Mother:       true,
	Doctor:       true,
	Pharmacist:   true,
	Nutritionist: true,
	Merchandiser: true,
	MedicalAdmin: true,
	OpsAdmin:     true,
	SystemAdmin:  true,
}

// aliases maps normalized non-canonical spellings to their canonical role.
// Role values have been written inconsistently over time; this table is the
// single place new historical variants get registered.
var aliases = map[string]Role{
	"mom":              Mother,
	"mum":              Mother,
	"patient":          Mother,
	"dr":               Doctor,
	"physician":        Doctor,
	"clinician":        Doctor,
	"pharma":           Pharmacist,
	"chemist":          Pharmacist,
	"dietician":        Nutritionist,
	"dietitian":        Nutritionist,
	"merch":            Merchandiser,
	"vendor":           Merchandiser,
	"medadmin":         MedicalAdmin,
	"medicaladmin":     MedicalAdmin,
	"opsadmin":         OpsAdmin,
	"operations_admin": OpsAdmin,
	"sysadmin":         SystemAdmin,
	"superadmin":       SystemAdmin,
	"systemadmin":      SystemAdmin,
}

var separators = strings.NewReplacer("-", "_", " ", "_", ".", "_")

// fold lower-cases the input and collapses separator characters to "_".
func fold(raw string) string {
	s := separators.Replace(strings.ToLower(strings.TrimSpace(raw)))
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// Parse resolves a raw role string to a canonical Role. Unrecognized input
// returns ErrUnknownRole; callers decide how to handle it rather than letting
// arbitrary strings flow through authorization checks.
func Parse(raw string) (Role, error) {
	folded := fold(raw)
	if canonical[Role(folded)] {
		return Role(folded), nil
	}
	if r, ok := aliases[folded]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
}

// Normalize returns the canonical spelling for a raw role string, or the
// input unchanged when it cannot be resolved. It exists for pathways that
// read historically inconsistent persisted data and must not fail on it;
// new code should use Parse.
func Normalize(raw string) string {
	r, err := Parse(raw)
	if err != nil {
		return raw
	}
	return string(r)
}

// IsKnown reports whether the string is a member of the canonical role set.
func IsKnown(role string) bool {
	return canonical[Role(role)]
}

// ExpandForQuery returns every spelling of the role that may appear in
// persisted data, canonical form first. Callers building a `role IN (...)`
// filter use this so that rows written under old spellings still match.
func ExpandForQuery(r Role) []string {
	out := []string{string(r)}
	for alias, target := range aliases {
		if target == r {
			out = append(out, alias)
		}
	}
	return out
}

// All returns the canonical role set.
func All() []Role {
	return []Role{Mother, Doctor, Pharmacist, Nutritionist, Merchandiser,
		MedicalAdmin, OpsAdmin, SystemAdmin}
}
