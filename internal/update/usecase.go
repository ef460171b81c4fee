package update

import (
	"context"

	"github.com/streamcommerce/product-update-service/internal/update/dto"
)

type UseCase interface {
	// ValidateBatch checks batch size limits without touching storage.
	ValidateBatch(items []dto.ProductUpdateItem) error

	// BatchUpdate applies the requested partial updates item by item,
	// collecting per-SKU errors. It returns an error only for fatal
	// conditions (invalid batch size, missing SKU attribute).
	BatchUpdate(ctx context.Context, items []dto.ProductUpdateItem) (*dto.BatchUpdateResult, error)
}
