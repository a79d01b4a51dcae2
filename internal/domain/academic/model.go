package academic

import (
	"time"

	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
)

// DegreeType is the broadest academic classification a tariff can scope to,
// e.g. bachelor, master, phd.
type DegreeType struct {
	Code string `json:"code"`
	Name string `json:"name"`

	types.BaseModel
}

// Degree is a concrete programme belonging to a degree type.
type Degree struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	DegreeTypeCode string `json:"degree_type_code"`

	// CycleCodes are the study cycles the degree offers.
	CycleCodes []string `json:"cycle_codes"`

	types.BaseModel
}

// HasCycle reports whether the degree offers the given cycle.
func (d *Degree) HasCycle(cycleCode string) bool {
	return lo.Contains(d.CycleCodes, cycleCode)
}

// ExecutionPeriod is the academic period (year or semester) rules and
// registrations are anchored to.
type ExecutionPeriod struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BeginDate time.Time `json:"begin_date"`
	EndDate   time.Time `json:"end_date"`

	types.BaseModel
}

// Registration is the billing subject: one student enrolled in one degree.
// Only the shape needed to drive pricing and rule eligibility is modelled;
// the academic module owns the rest.
type Registration struct {
	ID             string `json:"id"`
	StudentID      string `json:"student_id"`
	StudentName    string `json:"student_name"`
	FiscalNumber   string `json:"fiscal_number"`
	DegreeTypeCode string `json:"degree_type_code"`
	DegreeCode     string `json:"degree_code"`
	CycleCode      string `json:"cycle_code"`

	// FirstEnrollmentPeriodID identifies the period in which the student
	// first enrolled; later periods are enrollment renewals.
	FirstEnrollmentPeriodID string `json:"first_enrollment_period_id"`

	// EnrolledPeriodIDs lists every period the registration is enrolled in.
	EnrolledPeriodIDs []string `json:"enrolled_period_ids"`

	types.BaseModel
}

// IsFirstTimeIn reports whether the registration is a first-time enrollment
// for the given execution period.
func (r *Registration) IsFirstTimeIn(periodID string) bool {
	return r.FirstEnrollmentPeriodID == periodID
}

// IsEnrolledIn reports whether the registration is enrolled in the period.
func (r *Registration) IsEnrolledIn(periodID string) bool {
	return lo.Contains(r.EnrolledPeriodIDs, periodID)
}
