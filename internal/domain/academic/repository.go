package academic

import "context"

// RegistrationRepository gives the engine read access to the registration
// population owned by the academic module.
type RegistrationRepository interface {
	Get(ctx context.Context, id string) (*Registration, error)
	ListByPeriod(ctx context.Context, periodID string) ([]*Registration, error)
}

// DegreeRepository resolves degree and degree-type codes during tariff
// scope validation.
type DegreeRepository interface {
	GetDegree(ctx context.Context, code string) (*Degree, error)
	GetDegreeType(ctx context.Context, code string) (*DegreeType, error)
}
