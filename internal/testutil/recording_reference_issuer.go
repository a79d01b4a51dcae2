package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acadfin/treasury/internal/domain/paymentcode"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// RecordingReferenceIssuer implements paymentcode.Issuer and records every
// reference it issues for assertions.
type RecordingReferenceIssuer struct {
	mu     sync.Mutex
	issued []*paymentcode.ReferenceCode

	// Err, when set, fails every Issue call.
	Err error
}

func NewRecordingReferenceIssuer() *RecordingReferenceIssuer {
	return &RecordingReferenceIssuer{
		issued: make([]*paymentcode.ReferenceCode, 0),
	}
}

func (r *RecordingReferenceIssuer) Issue(ctx context.Context, accountID string, lineIDs []string, amount decimal.Decimal, validFrom, validTo time.Time) (*paymentcode.ReferenceCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}

	ref := &paymentcode.ReferenceCode{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFERENCE_CODE),
		Code:         fmt.Sprintf("%09d", len(r.issued)+1),
		AccountID:    accountID,
		DebitLineIDs: lineIDs,
		Amount:       amount,
		ValidFrom:    validFrom,
		ValidTo:      validTo,
		BaseModel:    types.GetDefaultBaseModel(ctx),
	}
	r.issued = append(r.issued, ref)
	return ref, nil
}

// Issued returns a snapshot of every reference issued so far.
func (r *RecordingReferenceIssuer) Issued() []*paymentcode.ReferenceCode {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*paymentcode.ReferenceCode, len(r.issued))
	copy(out, r.issued)
	return out
}

func (r *RecordingReferenceIssuer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = r.issued[:0]
	r.Err = nil
}
