package tariff

import "context"

type Repository interface {
	Create(ctx context.Context, tariff *TariffRecord) error
	Get(ctx context.Context, id string) (*TariffRecord, error)
	Update(ctx context.Context, tariff *TariffRecord) error
	Delete(ctx context.Context, id string) error

	// ListByEntityProduct returns every non-deleted record for the
	// (entity, product) pair, most recently created first.
	ListByEntityProduct(ctx context.Context, entityID, productID string) ([]*TariffRecord, error)
}
