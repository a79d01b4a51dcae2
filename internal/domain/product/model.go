package product

import (
	"github.com/acadfin/treasury/internal/types"
)

// Product is one billable catalog entry: a tuition installment, an academic
// tax or an emolument.
type Product struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	VatCategory string `json:"vat_category"`

	types.BaseModel
}
