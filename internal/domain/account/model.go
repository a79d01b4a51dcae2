package account

import (
	"context"

	"github.com/acadfin/treasury/internal/types"
)

// SubjectIdentity carries the minimal identity the treasury module needs to
// open a debt account for a billing subject.
type SubjectIdentity struct {
	SubjectID    string `json:"subject_id"`
	Name         string `json:"name"`
	FiscalNumber string `json:"fiscal_number"`
}

// AccountRef is a handle to a debt account held by the sibling treasury
// module for one subject within one financial entity.
type AccountRef struct {
	ID           string `json:"id"`
	EntityID     string `json:"entity_id"`
	SubjectID    string `json:"subject_id"`
	CustomerName string `json:"customer_name"`
	FiscalNumber string `json:"fiscal_number"`

	types.BaseModel
}

// Directory is the boundary to the treasury module's customer/account
// registry. FindOrCreate must be idempotent per (entity, subject).
type Directory interface {
	FindOrCreateAccount(ctx context.Context, entityID string, subject SubjectIdentity) (*AccountRef, error)
	FindAccount(ctx context.Context, entityID string, accountID string) (*AccountRef, error)
}
