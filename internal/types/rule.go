package types

// RuleKind identifies a registered generation-rule strategy. The set is
// closed at engine construction; a persisted rule referencing an
// unregistered kind is a configuration error.
type RuleKind string

const (
	// RuleKindTariffIssuance prices and issues debt for each entry product
	// across the eligible registration population.
	RuleKindTariffIssuance RuleKind = "tariff_issuance"
	// RuleKindPaymentReferenceBackfill creates payment references for
	// charged events that still lack one.
	RuleKindPaymentReferenceBackfill RuleKind = "payment_reference_backfill"
)

// RuleKindsInExecutionOrder fixes the relative order in which rule kinds run
// within one batch. Later kinds may depend on debt created by earlier ones.
var RuleKindsInExecutionOrder = []RuleKind{
	RuleKindTariffIssuance,
	RuleKindPaymentReferenceBackfill,
}

// RestrictionKind identifies a registered eligibility predicate.
type RestrictionKind string

const (
	RestrictionFirstTimeStudent           RestrictionKind = "first_time_student"
	RestrictionEnrollmentRenewal          RestrictionKind = "enrollment_renewal"
	RestrictionNoExistingPaymentReference RestrictionKind = "no_existing_payment_reference"
)

func (k RestrictionKind) Validate() bool {
	switch k {
	case RestrictionFirstTimeStudent, RestrictionEnrollmentRenewal, RestrictionNoExistingPaymentReference:
		return true
	}
	return false
}
