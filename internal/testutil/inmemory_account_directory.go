package testutil

import (
	"context"
	"sync"

	"github.com/acadfin/treasury/internal/domain/account"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
)

// InMemoryAccountDirectory implements account.Directory. FindOrCreate is
// idempotent per (entity, subject) pair.
type InMemoryAccountDirectory struct {
	mu       sync.Mutex
	accounts map[string]*account.AccountRef
}

func NewInMemoryAccountDirectory() *InMemoryAccountDirectory {
	return &InMemoryAccountDirectory{
		accounts: make(map[string]*account.AccountRef),
	}
}

func (d *InMemoryAccountDirectory) FindOrCreateAccount(ctx context.Context, entityID string, subject account.SubjectIdentity) (*account.AccountRef, error) {
	if subject.SubjectID == "" {
		return nil, ierr.NewError("subject identity is required").
			Mark(ierr.ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	key := entityID + ":" + subject.SubjectID
	if acc, ok := d.accounts[key]; ok {
		return acc, nil
	}

	acc := &account.AccountRef{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ACCOUNT),
		EntityID:     entityID,
		SubjectID:    subject.SubjectID,
		CustomerName: subject.Name,
		FiscalNumber: subject.FiscalNumber,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	d.accounts[key] = acc
	return acc, nil
}

func (d *InMemoryAccountDirectory) FindAccount(ctx context.Context, entityID string, accountID string) (*account.AccountRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, acc := range d.accounts {
		if acc.EntityID == entityID && acc.ID == accountID {
			return acc, nil
		}
	}
	return nil, ierr.NewError("account not found").
		WithHintf("account with ID %s was not found", accountID).
		Mark(ierr.ErrNotFound)
}

func (d *InMemoryAccountDirectory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts = make(map[string]*account.AccountRef)
}
